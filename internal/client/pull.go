package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/codepair/codepair/internal/editor"
	"github.com/codepair/codepair/internal/reconcile"
	"github.com/codepair/codepair/internal/types"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	leaveTimeout        = 2 * time.Second
)

// PullClient consumes the pull variant: it writes edits to the room
// API and observes room state by polling, handing every whole-state
// observation to the reconciliation engine.
type PullClient struct {
	log      *log.Logger
	baseURL  string
	http     *http.Client
	roomId   string
	userId   string
	username string
	engine   *reconcile.Engine
	interval time.Duration

	mu        sync.Mutex
	connected bool
	cancel    context.CancelFunc

	onUsers func([]types.Participant)
}

// NewPullClient wires an editor to a room served by the pull API.
// language is the locally active language before the first
// observation arrives.
func NewPullClient(logger *log.Logger, baseURL, roomId, userId, username string, ed editor.Editor, language string) *PullClient {
	c := &PullClient{
		log:      logger,
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		roomId:   roomId,
		userId:   userId,
		username: username,
		interval: defaultPollInterval,
	}
	c.engine = reconcile.NewEngine(logger, ed, c, language)

	return c
}

// Engine exposes the reconciliation engine so callers can register
// downstream observers and forward local language switches.
func (c *PullClient) Engine() *reconcile.Engine {
	return c.engine
}

// OnUsersChanged registers an observer for the online roster.
func (c *PullClient) OnUsersChanged(fn func([]types.Participant)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUsers = fn
}

func (c *PullClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Join joins the room and starts observing it. A failed join leaves
// the client disconnected; calling Join again retries cleanly.
func (c *PullClient) Join(ctx context.Context) (string, error) {
	var resp struct {
		Success bool   `json:"success"`
		Color   string `json:"color"`
	}

	err := c.postJson(ctx, "/api/rooms/join", map[string]string{
		"room_id":  c.roomId,
		"user_id":  c.userId,
		"username": c.username,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("join room: %w", err)
	}

	if !resp.Success {
		return "", fmt.Errorf("join room %q rejected", c.roomId)
	}

	watchCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.connected = true
	c.cancel = cancel
	c.mu.Unlock()

	go c.watch(watchCtx)

	return resp.Color, nil
}

// Leave is fire-and-forget: it stops the watcher immediately and
// notifies the server in the background so teardown never blocks.
func (c *PullClient) Leave() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()

		if err := c.postJson(ctx, "/api/rooms/leave", map[string]string{
			"room_id": c.roomId,
			"user_id": c.userId,
		}, nil); err != nil {
			c.log.Printf("leave room: %v", err)
		}
	}()
}

// watch re-evaluates room state and roster until cancelled. Every
// observation is a full replacement of prior state; polling failures
// are logged and retried on the next tick.
func (c *PullClient) watch(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.observe(ctx)
		}
	}
}

func (c *PullClient) observe(ctx context.Context) {
	var snap types.Snapshot
	if err := c.getJson(ctx, "/api/rooms/state?room_id="+url.QueryEscape(c.roomId), &snap); err != nil {
		c.log.Printf("observe state: %v", err)
	} else {
		c.engine.ApplySnapshot(snap)
	}

	c.mu.Lock()
	onUsers := c.onUsers
	c.mu.Unlock()
	if onUsers == nil {
		return
	}

	var users []types.Participant
	if err := c.getJson(ctx, "/api/rooms/users?room_id="+url.QueryEscape(c.roomId), &users); err != nil {
		c.log.Printf("observe users: %v", err)
		return
	}

	onUsers(users)
}

// SendCode implements reconcile.Emitter.
func (c *PullClient) SendCode(ctx context.Context, code string) error {
	if !c.Connected() {
		return fmt.Errorf("not connected to room %q", c.roomId)
	}

	return c.postJson(ctx, "/api/rooms/code", map[string]string{
		"room_id": c.roomId,
		"user_id": c.userId,
		"code":    code,
	}, nil)
}

// SendLanguage implements reconcile.Emitter.
func (c *PullClient) SendLanguage(ctx context.Context, language string) error {
	if !c.Connected() {
		return fmt.Errorf("not connected to room %q", c.roomId)
	}

	return c.postJson(ctx, "/api/rooms/language", map[string]string{
		"room_id":  c.roomId,
		"user_id":  c.userId,
		"language": language,
	}, nil)
}

func (c *PullClient) postJson(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *PullClient) getJson(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
