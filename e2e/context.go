package e2e

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TestContext carries the HTTP client and the state one scenario builds up:
// the last response and any values remembered from earlier responses.
type TestContext struct {
	BaseURL    string
	StaffToken string

	client        *http.Client
	authenticated bool
	lastStatus    int
	lastBody      []byte
	vars          map[string]string
}

func NewTestContext(baseURL, staffToken string) *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		StaffToken: staffToken,
		client:     &http.Client{Timeout: 30 * time.Second},
		vars:       map[string]string{},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.authenticated = false
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.vars = map[string]string{}
}

func (tc *TestContext) AuthenticateAsStaff() error {
	if tc.StaffToken == "" {
		return errors.New("WARISH_STAFF_TOKEN is not set")
	}
	tc.authenticated = true
	return nil
}

func (tc *TestContext) Anonymous() {
	tc.authenticated = false
}

// Expand replaces {name} placeholders with remembered values.
func (tc *TestContext) Expand(s string) string {
	for k, v := range tc.vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

func (tc *TestContext) Remember(key, value string) {
	tc.vars[key] = value
}

// Do sends a JSON request without touching the recorded last response, so it
// is safe to call from several goroutines.
func (tc *TestContext) Do(method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+tc.Expand(path), reader)
	if err != nil {
		return 0, nil, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return tc.send(req)
}

func (tc *TestContext) Request(method, path string, body any) error {
	status, respBody, err := tc.Do(method, path, body)
	if err != nil {
		return err
	}
	tc.lastStatus, tc.lastBody = status, respBody
	return nil
}

// Upload posts payload as the multipart field "file".
func (tc *TestContext) Upload(path, fileName string, payload []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := part.Write(payload); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, tc.BaseURL+tc.Expand(path), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	status, respBody, err := tc.send(req)
	if err != nil {
		return err
	}
	tc.lastStatus, tc.lastBody = status, respBody
	return nil
}

func (tc *TestContext) send(req *http.Request) (int, []byte, error) {
	if tc.authenticated {
		req.Header.Set("Authorization", "Bearer "+tc.StaffToken)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (tc *TestContext) Status() int {
	return tc.lastStatus
}

func (tc *TestContext) Body() []byte {
	return tc.lastBody
}

// ResponseField walks a dotted path such as "data.roots.0.member.name" through
// the last JSON response. Numeric segments index arrays.
func (tc *TestContext) ResponseField(path string) (any, error) {
	var cur any
	if err := json.Unmarshal(tc.lastBody, &cur); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("field %q not found", path)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", seg, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("field %q not found", path)
		}
	}
	return cur, nil
}
