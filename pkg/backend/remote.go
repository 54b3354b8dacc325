package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nodewee/doc-structurer/pkg/logger"
	"github.com/nodewee/doc-structurer/pkg/schema"
	"github.com/nodewee/doc-structurer/pkg/types"
	"github.com/nodewee/doc-structurer/pkg/utils"
)

// Remote wire paths. The serve mode in pkg/server exposes the same surface,
// so a remote descriptor can point at another doc-structurer instance.
const (
	remoteExtractPath = "/v1/extract"
	remoteInfoPath    = "/v1/info"
	remoteHealthPath  = "/healthz"
)

// RemoteInfoQuery is the lightweight metadata query sent for info; the file
// itself is not uploaded
type RemoteInfoQuery struct {
	SourceFile string `json:"source_file"`
	SizeBytes  int64  `json:"size_bytes"`
}

// RemoteStrategy talks to a network document-conversion endpoint: multipart
// upload for extract, a metadata query for info. The request context bounds
// every call; expiry aborts the in-flight request.
type RemoteStrategy struct {
	logger *logger.Logger
	client *http.Client
}

// NewRemoteStrategy creates the remote strategy. Timeouts come from each
// descriptor through the request context, not from the client.
func NewRemoteStrategy(log *logger.Logger) *RemoteStrategy {
	return &RemoteStrategy{
		logger: log,
		client: &http.Client{},
	}
}

// Kind returns the backend variant
func (s *RemoteStrategy) Kind() types.BackendKind {
	return types.BackendRemote
}

// Probe checks the endpoint's health route
func (s *RemoteStrategy) Probe(ctx context.Context, desc types.BackendDescriptor) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL(desc, remoteHealthPath), nil)
	if err != nil {
		return utils.NewBackendError(utils.FailureUnreachable, desc.String(), "building probe request", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return s.transportError(desc, "probe failed", err)
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return utils.NewBackendError(utils.FailureUnreachable, desc.String(),
			fmt.Sprintf("probe answered status %d", resp.StatusCode), nil)
	}
	return nil
}

// Extract uploads the file and parses the response body as the schema
func (s *RemoteStrategy) Extract(ctx context.Context, desc types.BackendDescriptor, sourcePath string, options map[string]string) (*schema.ExtractedDocument, error) {
	body, contentType, err := buildMultipart(sourcePath, options)
	if err != nil {
		return nil, utils.NewBackendError(utils.FailureNonZeroExit, desc.String(),
			"preparing upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL(desc, remoteExtractPath), body)
	if err != nil {
		return nil, utils.NewBackendError(utils.FailureUnreachable, desc.String(), "building request", err)
	}
	req.Header.Set("Content-Type", contentType)

	payload, err := s.send(desc, req)
	if err != nil {
		return nil, err
	}
	doc, err := schema.ParseExtractedDocument(payload)
	if err != nil {
		return nil, utils.NewBackendError(utils.FailureMalformedOutput, desc.String(),
			"endpoint returned a malformed body", err)
	}
	return doc, nil
}

// Info sends the metadata query and parses the response body as the schema
func (s *RemoteStrategy) Info(ctx context.Context, desc types.BackendDescriptor, sourcePath string) (*schema.InfoResult, error) {
	query := RemoteInfoQuery{
		SourceFile: filepath.Base(sourcePath),
		SizeBytes:  utils.FileSize(sourcePath),
	}
	encoded, err := json.Marshal(query)
	if err != nil {
		return nil, utils.NewBackendError(utils.FailureNonZeroExit, desc.String(), "encoding query", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL(desc, remoteInfoPath), bytes.NewReader(encoded))
	if err != nil {
		return nil, utils.NewBackendError(utils.FailureUnreachable, desc.String(), "building request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	payload, err := s.send(desc, req)
	if err != nil {
		return nil, err
	}
	res, err := schema.ParseInfoResult(payload)
	if err != nil {
		return nil, utils.NewBackendError(utils.FailureMalformedOutput, desc.String(),
			"endpoint returned a malformed body", err)
	}
	return res, nil
}

// send issues the request and maps transport and status failures onto the
// shared taxonomy
func (s *RemoteStrategy) send(desc types.BackendDescriptor, req *http.Request) ([]byte, error) {
	s.logger.Debug("Remote call: %s %s", req.Method, req.URL)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.transportError(desc, "request failed", err)
	}
	defer drainAndClose(resp.Body)

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, s.transportError(desc, "reading response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("endpoint answered status %d", resp.StatusCode)
		if detail := utils.Truncate(string(payload), 300); detail != "" {
			msg += ": " + detail
		}
		return nil, utils.NewBackendError(utils.FailureNonZeroExit, desc.String(), msg, nil)
	}
	return payload, nil
}

// transportError classifies a network-level failure: deadline expiry is a
// timeout, everything else means the endpoint is unreachable
func (s *RemoteStrategy) transportError(desc types.BackendDescriptor, msg string, err error) error {
	if kind, ok := utils.ClassifyContextErr(err); ok {
		return utils.NewBackendError(kind, desc.String(),
			fmt.Sprintf("request aborted after %s", desc.Timeout()), err)
	}
	return utils.NewBackendError(utils.FailureUnreachable, desc.String(), msg, err)
}

// buildMultipart assembles the upload body: a "file" part plus one field per
// option
func buildMultipart(sourcePath string, options map[string]string) (io.Reader, string, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", sourcePath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(sourcePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", sourcePath, err)
	}
	for _, key := range sortedKeys(options) {
		if err := writer.WriteField(key, options[key]); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

func endpointURL(desc types.BackendDescriptor, path string) string {
	return strings.TrimRight(desc.Endpoint, "/") + path
}

func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}
