// Package sefaria provides the tool catalog advertised to the model and the
// retrieval adapter that executes tool calls against the Sefaria REST API.
//
// The registry is immutable after construction. Argument schemas are
// derived from the typed input structs below, so the struct is the single
// source of truth for both the wire schema and dispatch-time decoding.
package sefaria

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/sefaria-labs/explorer/internal/openrouter"
)

// Tool name constants, matched against dispatch requests.
const (
	ToolGetText        = "get_text"
	ToolTextSearch     = "text_search"
	ToolSemanticSearch = "english_semantic_search"
	ToolGetLinks       = "get_links_between_texts"
	ToolTopicDetails   = "get_topic_details"
	ToolClarifyName    = "clarify_name_argument"
)

// defaultResultCount is the fallback for result-count arguments the model
// leaves out.
const defaultResultCount = 10

// GetTextInput is the argument payload for get_text.
type GetTextInput struct {
	Reference       string `json:"reference" jsonschema:"Specific text reference (e.g. 'Genesis 1:1', 'Berakhot 2a')"`
	VersionLanguage string `json:"version_language,omitempty" jsonschema:"Which language version to retrieve - 'source', 'english', 'both', or omit for all"`
}

// TextSearchInput is the argument payload for text_search.
type TextSearchInput struct {
	Query string `json:"query" jsonschema:"Search terms (Hebrew/Aramaic preferred for best results)"`
	Size  int    `json:"size,omitempty" jsonschema:"Maximum number of results to return"`
}

// SemanticSearchInput is the argument payload for english_semantic_search.
type SemanticSearchInput struct {
	Query string `json:"query" jsonschema:"The search query to find semantically similar text chunks"`
}

// GetLinksInput is the argument payload for get_links_between_texts.
type GetLinksInput struct {
	Reference string `json:"reference" jsonschema:"Specific text reference (e.g. 'Genesis 1:1', 'Berakhot 2a')"`
	WithText  string `json:"with_text,omitempty" jsonschema:"Whether to include the actual text content ('0' or '1')"`
}

// TopicDetailsInput is the argument payload for get_topic_details.
type TopicDetailsInput struct {
	TopicSlug string `json:"topic_slug" jsonschema:"Topic identifier slug (e.g. 'moses', 'sabbath')"`
	WithLinks bool   `json:"with_links,omitempty" jsonschema:"Include links to related topics"`
	WithRefs  bool   `json:"with_refs,omitempty" jsonschema:"Include text references tagged with this topic"`
}

// ClarifyNameInput is the argument payload for clarify_name_argument.
type ClarifyNameInput struct {
	Name  string `json:"name" jsonschema:"Partial or complete name to validate/complete"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of suggestions to return"`
}

// Descriptor describes one tool: its unique name, the description the model
// uses to decide when to call it, and the JSON schema of its arguments.
type Descriptor struct {
	Name        string
	Description string
	Params      *jsonschema.Schema
}

// Registry is the ordered, immutable catalog of tool descriptors.
// The full set is advertised verbatim on every orchestration call.
//
// Safe for concurrent use (no mutable state after construction).
type Registry struct {
	descriptors []Descriptor
	byName      map[string]Descriptor
}

// NewRegistry builds the static tool catalog.
func NewRegistry() (*Registry, error) {
	getText, err := jsonschema.For[GetTextInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", ToolGetText, err)
	}
	getText.Required = []string{"reference"}
	getText.Properties["version_language"].Enum = []any{"source", "english", "both"}

	textSearch, err := jsonschema.For[TextSearchInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", ToolTextSearch, err)
	}
	textSearch.Required = []string{"query"}
	textSearch.Properties["size"].Default = json.RawMessage("10")

	semantic, err := jsonschema.For[SemanticSearchInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", ToolSemanticSearch, err)
	}
	semantic.Required = []string{"query"}

	links, err := jsonschema.For[GetLinksInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", ToolGetLinks, err)
	}
	links.Required = []string{"reference"}
	links.Properties["with_text"].Default = json.RawMessage(`"0"`)

	topics, err := jsonschema.For[TopicDetailsInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", ToolTopicDetails, err)
	}
	topics.Required = []string{"topic_slug"}

	clarify, err := jsonschema.For[ClarifyNameInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", ToolClarifyName, err)
	}
	clarify.Required = []string{"name"}

	descriptors := []Descriptor{
		{
			Name:        ToolGetText,
			Description: "Retrieves the actual text content from a specific reference in the Jewish library. Args: reference (e.g. 'Genesis 1:1', 'Berakhot 2a'), version_language ('source', 'english', 'both', or omit for all).",
			Params:      getText,
		},
		{
			Name:        ToolTextSearch,
			Description: "Searches across the entire Jewish library for passages containing specific terms. Hebrew/Aramaic searches are more reliable than English translations.",
			Params:      textSearch,
		},
		{
			Name:        ToolSemanticSearch,
			Description: "Performs semantic similarity search on English embeddings of texts from Sefaria. Works well only with English queries.",
			Params:      semantic,
		},
		{
			Name:        ToolGetLinks,
			Description: "Finds all cross-references and connections to a specific text passage.",
			Params:      links,
		},
		{
			Name:        ToolTopicDetails,
			Description: "Retrieves detailed information about specific topics in Jewish thought and texts.",
			Params:      topics,
		},
		{
			Name:        ToolClarifyName,
			Description: "Validates and autocompletes text names, book titles, references, topic slugs, author names, and categories.",
			Params:      clarify,
		},
	}

	byName := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", d.Name)
		}
		byName[d.Name] = d
	}

	return &Registry{descriptors: descriptors, byName: byName}, nil
}

// Descriptors returns the catalog in registration order. The returned slice
// is a copy.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Lookup returns the descriptor for a tool name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Specs renders the catalog in the completion backend's tool format.
func (r *Registry) Specs() []openrouter.Tool {
	specs := make([]openrouter.Tool, len(r.descriptors))
	for i, d := range r.descriptors {
		specs[i] = openrouter.Tool{
			Type: "function",
			Function: openrouter.ToolFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Params,
			},
		}
	}
	return specs
}
