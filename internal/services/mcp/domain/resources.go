package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const journalResourceLimit = 50

// JournalPayload is the journal resource body.
type JournalPayload struct {
	KingdomID string          `json:"kingdom_id"`
	Checks    []JournalResult `json:"checks"`
}

// JournalResourceTemplate defines the readable check journal of a kingdom.
func JournalResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "kingdom_journal",
		Title:       "Kingdom Journal",
		Description: "Recent checks of a kingdom, newest first. URI format: kingdom://{kingdom_id}/journal",
		MIMEType:    "application/json",
		URITemplate: "kingdom://{kingdom_id}/journal",
	}
}

// JournalResourceHandler reads the check journal of the kingdom in the URI.
func JournalResourceHandler(kingdoms Kingdoms) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("kingdom ID is required; use URI format kingdom://{kingdom_id}/journal")
		}
		uri := req.Params.URI
		kingdomID, err := parseKingdomIDFromURI(uri, "journal")
		if err != nil {
			return nil, fmt.Errorf("parse kingdom ID from URI: %w", err)
		}

		records, err := kingdoms.Journal(ctx, kingdomID, journalResourceLimit)
		if err != nil {
			return nil, fmt.Errorf("list journal: %w", err)
		}
		payload := JournalPayload{KingdomID: kingdomID, Checks: []JournalResult{}}
		for _, record := range records {
			payload.Checks = append(payload.Checks, journalResult(record))
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal journal: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

// parseKingdomIDFromURI extracts the id from kingdom://{kingdom_id}/{suffix}.
func parseKingdomIDFromURI(uri, suffix string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "kingdom" {
		return "", fmt.Errorf("URI must use the kingdom scheme, got %q", uri)
	}
	if strings.Trim(parsed.Path, "/") != suffix {
		return "", fmt.Errorf("URI must end with /%s, got %q", suffix, uri)
	}
	kingdomID := strings.TrimSpace(parsed.Host)
	if kingdomID == "" {
		return "", fmt.Errorf("kingdom ID is required in URI %q", uri)
	}
	return kingdomID, nil
}
