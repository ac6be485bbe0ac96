// Package client talks to a running face-recognizer server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strings"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
)

const defaultServerURL = "http://localhost:8080"

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// Client is an HTTP client for the /api/v1 endpoints.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a client for the server at baseURL. A non-empty token is sent
// as a bearer token.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultServerURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/api/v1",
		token:   token,
		client:  &http.Client{Timeout: constants.RequestTimeout},
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// ModelBytesResponse is returned by the model chunk endpoints.
type ModelBytesResponse struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type detectAllResponse struct {
	Faces []facematch.BoundingBox `json:"faces"`
}

type addResponse struct {
	Label     string    `json:"label"`
	Embedding []float32 `json:"embedding"`
}

type countResponse struct {
	Count int `json:"count"`
}

// do sends req and decodes a JSON response into result (if not nil).
func (c *Client) do(req *http.Request, result any, expectedStatuses ...int) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response body: %w", err)
	}

	if !slices.Contains(expectedStatuses, resp.StatusCode) {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			apiErr.Message, apiErr.Kind = er.Error, er.Kind
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("could not unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// multipartImage builds a multipart form with the image and optional extra fields.
func multipartImage(imageData []byte, fields map[string]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="image"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func (c *Client) postImage(ctx context.Context, endpoint string, imageData []byte, fields map[string]string, result any, expected ...int) error {
	body, contentType, err := multipartImage(imageData, fields)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, body, contentType)
	if err != nil {
		return err
	}
	return c.do(req, result, expected...)
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		return err
	}
	return c.do(req, nil, http.StatusOK)
}

// Detect returns the primary face in the image.
func (c *Client) Detect(ctx context.Context, imageData []byte) (*facematch.BoundingBox, error) {
	var box facematch.BoundingBox
	if err := c.postImage(ctx, "/detect", imageData, nil, &box, http.StatusOK); err != nil {
		return nil, err
	}
	return &box, nil
}

// DetectAll returns every face in the image.
func (c *Client) DetectAll(ctx context.Context, imageData []byte) ([]facematch.BoundingBox, error) {
	var resp detectAllResponse
	if err := c.postImage(ctx, "/detect?all=true", imageData, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Faces, nil
}

// Recognize returns the nearest enrolled person.
func (c *Client) Recognize(ctx context.Context, imageData []byte) (*recognition.Person, error) {
	var person recognition.Person
	if err := c.postImage(ctx, "/recognize", imageData, nil, &person, http.StatusOK); err != nil {
		return nil, err
	}
	return &person, nil
}

// Add enrolls the face in the image under label and returns its embedding.
func (c *Client) Add(ctx context.Context, label string, imageData []byte) ([]float32, error) {
	var resp addResponse
	err := c.postImage(ctx, "/persons", imageData, map[string]string{"label": label}, &resp, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

// CountPersons returns the registry size, or the entries for label when not empty.
func (c *Client) CountPersons(ctx context.Context, label string) (int, error) {
	endpoint := "/persons/count"
	if label != "" {
		endpoint += "?label=" + url.QueryEscape(label)
	}
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return 0, err
	}
	var resp countResponse
	if err := c.do(req, &resp, http.StatusOK); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// ClearModel empties the named model blob on the server.
func (c *Client) ClearModel(ctx context.Context, name string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/models/"+url.PathEscape(name)+"/bytes", nil, "")
	if err != nil {
		return err
	}
	return c.do(req, nil, http.StatusOK)
}

// AppendModelChunk appends chunk to the named model blob and returns the new size.
func (c *Client) AppendModelChunk(ctx context.Context, name string, chunk []byte) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/models/"+url.PathEscape(name)+"/bytes",
		bytes.NewReader(chunk), "application/octet-stream")
	if err != nil {
		return 0, err
	}
	var resp ModelBytesResponse
	if err := c.do(req, &resp, http.StatusOK); err != nil {
		return 0, err
	}
	return resp.Size, nil
}

// UploadModel clears the named blob and uploads r in chunks of chunkSize bytes.
// progress, if not nil, is called with the number of bytes sent after each chunk.
func (c *Client) UploadModel(ctx context.Context, name string, r io.Reader, chunkSize int, progress func(n int)) (int64, error) {
	if chunkSize <= 0 {
		return 0, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if err := c.ClearModel(ctx, name); err != nil {
		return 0, fmt.Errorf("clearing %s: %w", name, err)
	}

	buf := make([]byte, chunkSize)
	var size int64
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			var err error
			size, err = c.AppendModelChunk(ctx, name, buf[:n])
			if err != nil {
				return size, fmt.Errorf("uploading chunk of %s: %w", name, err)
			}
			if progress != nil {
				progress(n)
			}
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			return size, nil
		}
		if readErr != nil {
			return size, fmt.Errorf("reading %s: %w", name, readErr)
		}
	}
}

// SetupModels activates the uploaded models.
func (c *Client) SetupModels(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/models/setup", nil, "")
	if err != nil {
		return err
	}
	return c.do(req, nil, http.StatusOK)
}

// Status returns the provisioning state of the server.
func (c *Client) Status(ctx context.Context) (*recognition.Status, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/models/status", nil, "")
	if err != nil {
		return nil, err
	}
	var st recognition.Status
	if err := c.do(req, &st, http.StatusOK); err != nil {
		return nil, err
	}
	return &st, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return http.DetectContentType(data)
}
