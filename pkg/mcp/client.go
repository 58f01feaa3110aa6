// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mcp is a minimal Model Context Protocol client used purely as a
// tool source: remote MCP servers contribute tools to the registry, and
// their calls flow through the same validation, approval, and truncation
// pipeline as built-ins. Server configuration is the host's concern.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
)

// protocolVersion is the MCP revision this client speaks.
const protocolVersion = "2024-11-05"

// jsonrpcRequest is one JSON-RPC 2.0 request.
type jsonrpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// jsonrpcResponse is one JSON-RPC 2.0 response.
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Config describes one MCP server connection.
type Config struct {
	// Name labels the server; its tools join the registry group
	// "mcp:<name>".
	Name string

	// Endpoint is the server's HTTP origin.
	Endpoint string

	// SSEPath is the event-stream path, /sse when empty.
	SSEPath string

	// Headers are extra request headers (authentication and the like).
	Headers map[string]string

	// Timeout bounds one request, 30s when zero.
	Timeout time.Duration
}

// Client speaks JSON-RPC over HTTP to one MCP server, with an SSE
// subscription for server notifications.
type Client struct {
	config     Config
	httpClient *http.Client
	sseClient  *sse.Client
	nextID     atomic.Int64

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client and starts its notification subscription in
// the background. An unreachable server does not fail construction; the
// first call reports the error.
func NewClient(config Config) *Client {
	if config.SSEPath == "" {
		config.SSEPath = "/sse"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	sseClient := sse.NewClient(config.Endpoint + config.SSEPath)
	for k, v := range config.Headers {
		sseClient.Headers[k] = v
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		sseClient:  sseClient,
	}

	go func() {
		err := sseClient.SubscribeWithContext(context.Background(), "message", func(msg *sse.Event) {
			zap.L().Debug("mcp notification",
				zap.String("server", config.Name),
				zap.ByteString("data", msg.Data),
			)
		})
		if err != nil {
			zap.L().Warn("mcp event subscription unavailable",
				zap.String("server", config.Name),
				zap.Error(err),
			)
		}
	}()

	return c
}

// call performs one JSON-RPC round trip.
func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("mcp client closed")
	}
	c.mu.Unlock()

	req := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.Endpoint+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, body)
	}

	var rpcResp jsonrpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("parse %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: server error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// Initialize performs the MCP handshake.
func (c *Client) Initialize(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"clientInfo": map[string]interface{}{
			"name":    "adnify-agent",
			"version": "1.0",
		},
		"capabilities": map[string]interface{}{},
	}
	var result map[string]interface{}
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return err
	}
	zap.L().Info("mcp server initialized",
		zap.String("server", c.config.Name),
	)
	return nil
}

// remoteToolInfo is a tool descriptor from tools/list.
type remoteToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ListTools fetches the server's tool descriptors.
func (c *Client) ListTools(ctx context.Context) ([]remoteToolInfo, error) {
	var result struct {
		Tools []remoteToolInfo `json:"tools"`
	}
	if err := c.call(ctx, "tools/list", map[string]interface{}{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// callToolResult is the tools/call response shape.
type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// CallTool invokes one remote tool and returns its concatenated text
// content.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, bool, error) {
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	var result callToolResult
	if err := c.call(ctx, "tools/call", params, &result); err != nil {
		return "", false, err
	}
	var text bytes.Buffer
	for _, part := range result.Content {
		if part.Type == "text" {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(part.Text)
		}
	}
	return text.String(), result.IsError, nil
}

// Close stops the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
