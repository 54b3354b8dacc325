package schema

import (
	"encoding/json"
	"fmt"

	"github.com/nodewee/doc-structurer/pkg/types"
)

// StatusSuccess is the status value emitted on a fully successful request.
// Failure paths never produce a structured payload, so no other status value
// exists on the success envelopes.
const StatusSuccess = "success"

// ExtractionRequest is one caller request handled by the dispatcher
type ExtractionRequest struct {
	Command    types.Command     `json:"command"`
	SourcePath string            `json:"source_path"`
	Options    map[string]string `json:"options,omitempty"`
}

// Validate rejects a request before any backend is touched
func (r ExtractionRequest) Validate() error {
	if !r.Command.Valid() {
		return fmt.Errorf("unknown command %q", string(r.Command))
	}
	if r.SourcePath == "" {
		return fmt.Errorf("source path cannot be empty")
	}
	return nil
}

// Section is one flat unit of document structure. Backends flatten nested
// outlines before crossing the contract boundary; order mirrors reading order.
type Section struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// TableBlock carries a table in its serialized representation, typically a
// markdown-table encoding
type TableBlock struct {
	Representation     string `json:"representation"`
	SourceSectionIndex *int   `json:"source_section_index,omitempty"`
}

// FigureRef describes a figure by its alt-text
type FigureRef struct {
	Description        string `json:"description"`
	SourceSectionIndex *int   `json:"source_section_index,omitempty"`
}

// DocumentMetadata holds best-effort document metadata. Zero counts mean the
// backend explicitly reported zero, never a silent placeholder for a failed
// call; a backend that cannot populate the contract must fail instead.
type DocumentMetadata struct {
	PageCount    int    `json:"page_count"`
	WordCount    int    `json:"word_count"`
	Language     string `json:"language"`
	CreationDate string `json:"creation_date,omitempty"`
	Author       string `json:"author,omitempty"`
}

// ExtractedDocument is the canonical extraction result. Every backend variant
// emits exactly this JSON shape regardless of transport.
type ExtractedDocument struct {
	Title    string           `json:"title,omitempty"`
	Text     string           `json:"text"`
	Sections []Section        `json:"sections"`
	Tables   []TableBlock     `json:"tables"`
	Figures  []FigureRef      `json:"figures"`
	Metadata DocumentMetadata `json:"metadata"`
}

// Validate checks the contract invariants a backend must satisfy
func (d *ExtractedDocument) Validate() error {
	if d == nil {
		return fmt.Errorf("document is nil")
	}
	if d.Metadata.PageCount < 0 {
		return fmt.Errorf("page_count must not be negative, got %d", d.Metadata.PageCount)
	}
	if d.Metadata.WordCount < 0 {
		return fmt.Errorf("word_count must not be negative, got %d", d.Metadata.WordCount)
	}
	for i, tb := range d.Tables {
		if tb.Representation == "" {
			return fmt.Errorf("table %d has an empty representation", i)
		}
		if err := checkSectionIndex(tb.SourceSectionIndex, len(d.Sections)); err != nil {
			return fmt.Errorf("table %d: %w", i, err)
		}
	}
	for i, fig := range d.Figures {
		if err := checkSectionIndex(fig.SourceSectionIndex, len(d.Sections)); err != nil {
			return fmt.Errorf("figure %d: %w", i, err)
		}
	}
	return nil
}

// Normalize replaces nil collections with empty ones so the serialized
// envelope always carries arrays, not nulls
func (d *ExtractedDocument) Normalize() {
	if d.Sections == nil {
		d.Sections = []Section{}
	}
	if d.Tables == nil {
		d.Tables = []TableBlock{}
	}
	if d.Figures == nil {
		d.Figures = []FigureRef{}
	}
}

func checkSectionIndex(idx *int, sections int) error {
	if idx == nil {
		return nil
	}
	if *idx < 0 || *idx >= sections {
		return fmt.Errorf("source_section_index %d out of range (document has %d sections)", *idx, sections)
	}
	return nil
}

// InfoResult is the capability-probe answer. A backend that cannot process a
// file type answers can_process=false here rather than failing.
type InfoResult struct {
	FileType                  string `json:"file_type"`
	CanProcess                bool   `json:"can_process"`
	EstimatedPages            int    `json:"estimated_pages"`
	EstimatedProcessingTimeMs int64  `json:"estimated_processing_time_ms"`
}

// Validate checks the probe contract invariants
func (r *InfoResult) Validate() error {
	if r == nil {
		return fmt.Errorf("info result is nil")
	}
	if r.EstimatedPages < 0 {
		return fmt.Errorf("estimated_pages must not be negative, got %d", r.EstimatedPages)
	}
	if r.EstimatedProcessingTimeMs < 0 {
		return fmt.Errorf("estimated_processing_time_ms must not be negative, got %d", r.EstimatedProcessingTimeMs)
	}
	return nil
}

// ExtractResponse is the envelope the dispatcher emits for extract
type ExtractResponse struct {
	Status           string            `json:"status"`
	SourceFile       string            `json:"source_file"`
	ExtractionMethod string            `json:"extraction_method"`
	ExtractedContent ExtractedDocument `json:"extracted_content"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
}

// InfoResponse is the envelope the dispatcher emits for info
type InfoResponse struct {
	Status     string `json:"status"`
	SourceFile string `json:"source_file"`
	InfoResult
}

// ParseExtractedDocument decodes and validates a backend's serialized
// document. Used by the subprocess and remote variants so all transports
// enforce the same contract.
func ParseExtractedDocument(data []byte) (*ExtractedDocument, error) {
	var doc ExtractedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document payload: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("document payload violates contract: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

// ParseInfoResult decodes and validates a backend's serialized probe answer
func ParseInfoResult(data []byte) (*InfoResult, error) {
	var res InfoResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding info payload: %w", err)
	}
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("info payload violates contract: %w", err)
	}
	return &res, nil
}
