package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fileplacer/internal/audit"
	"fileplacer/internal/placement"
	"fileplacer/internal/reportstore"
)

const (
	watchWriteWait = 10 * time.Second
	watchPongWait  = 60 * time.Second
	watchPingEvery = (watchPongWait * 9) / 10
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.origins.checkOrigin,
	}
}

// watchMessage is one frame on the watch stream. Type is "progress",
// "report" or "error"; the stream ends after "report" or "error".
type watchMessage struct {
	Type    string                    `json:"type"`
	Index   int                       `json:"index,omitempty"`
	Total   int                       `json:"total,omitempty"`
	Verdict *placement.Verdict        `json:"verdict,omitempty"`
	Report  *reportstore.StoredReport `json:"report,omitempty"`
	Code    string                    `json:"code,omitempty"`
	Message string                    `json:"message,omitempty"`
	File    string                    `json:"file,omitempty"`
}

// HandleWatch runs a scan described by query parameters and streams each
// verdict as it lands. Closing the socket cancels the scan.
func (h *Handler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	req, err := watchRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(watchPongWait)); err != nil {
		h.log.Warn("watch set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchPongWait))
	})

	// Reader: the client sends nothing meaningful; a read error means it left.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	writeCh := make(chan watchMessage, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(watchPingEvery)
		defer ticker.Stop()

		for {
			select {
			case out, ok := <-writeCh:
				if !ok {
					_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(watchWriteWait)); err != nil {
					cancel()
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					cancel()
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWriteWait)); err != nil {
					cancel()
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	push := func(m watchMessage) {
		select {
		case writeCh <- m:
		case <-writerDone:
		}
	}

	stored, err := h.scanner.Scan(ctx, req, func(e placement.ScanEvent) {
		v := e.Verdict
		push(watchMessage{Type: "progress", Index: e.Index, Total: e.Total, Verdict: &v})
	})
	if err != nil {
		_, body := errorPayload(err)
		push(watchMessage{Type: "error", Code: body.Code, Message: body.Error, File: body.File})
	} else {
		push(watchMessage{Type: "report", Report: &stored})
	}
	close(writeCh)
	<-writerDone
}

func watchRequest(r *http.Request) (audit.Request, error) {
	q := r.URL.Query()
	req := audit.Request{
		RepoURL:  strings.TrimSpace(q.Get("repo_url")),
		Branch:   strings.TrimSpace(q.Get("branch")),
		RepoPath: strings.TrimSpace(q.Get("repo_path")),
		Model:    strings.TrimSpace(q.Get("model")),
	}
	if req.RepoURL == "" && req.RepoPath == "" {
		return req, placement.ErrNoSource
	}
	if raw := strings.TrimSpace(q.Get("max_files")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return req, errInvalidParam("max_files", raw)
		}
		req.MaxFiles = n
	}
	if raw := strings.TrimSpace(q.Get("include_hidden")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return req, errInvalidParam("include_hidden", raw)
		}
		req.IncludeHidden = &b
	}
	return req, nil
}

func errInvalidParam(name, raw string) error {
	return fmt.Errorf("%w: query parameter %s=%q", placement.ErrInvalidInput, name, raw)
}
