package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/skycast/skycast/internal/models"
)

const DefaultArchiveIndex = "skycast-turns"

// TurnDocument is one archived conversation turn
type TurnDocument struct {
	ID         string                `json:"id"`
	SessionID  string                `json:"session_id"`
	Utterance  string                `json:"utterance"`
	Reply      string                `json:"reply,omitempty"`
	Agent      string                `json:"agent"`
	Events     []models.EventView    `json:"events"`
	Context    models.WeatherContext `json:"context"`
	Error      string                `json:"error,omitempty"`
	DurationMs int64                 `json:"duration_ms"`
	Timestamp  time.Time             `json:"@timestamp"`
}

// ArchiveConfig configures the Elasticsearch turn archive
type ArchiveConfig struct {
	URL         string
	User        string
	Password    string
	VerifyCerts bool
	MaxRetries  int
	Index       string
}

// TurnArchive indexes completed turns into Elasticsearch
type TurnArchive struct {
	client *elasticsearch.Client
	index  string
}

// NewTurnArchive creates an ES client using go-elasticsearch/v8
func NewTurnArchive(cfg ArchiveConfig) (*TurnArchive, error) {
	esCfg := elasticsearch.Config{
		Addresses:  []string{cfg.URL},
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.User != "" {
		esCfg.Username = cfg.User
		esCfg.Password = cfg.Password
	}
	if !cfg.VerifyCerts {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
			},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	index := cfg.Index
	if index == "" {
		index = DefaultArchiveIndex
	}
	return &TurnArchive{client: client, index: index}, nil
}

// TestConnection pings the cluster
func (a *TurnArchive) TestConnection(ctx context.Context) error {
	res, err := a.client.Ping(a.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

// Store indexes one turn document under its ID
func (a *TurnArchive) Store(ctx context.Context, doc TurnDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	res, err := a.client.Index(
		a.index,
		bytes.NewReader(body),
		a.client.Index.WithContext(ctx),
		a.client.Index.WithDocumentID(doc.ID),
	)
	if err != nil {
		return fmt.Errorf("index turn: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("index turn: %s: %s", res.Status(), string(b))
	}
	return nil
}

// Recent returns up to size archived turns of a session, newest first
func (a *TurnArchive) Recent(ctx context.Context, sessionID string, size int) ([]TurnDocument, error) {
	if size <= 0 || size > 100 {
		size = 20
	}
	query := map[string]interface{}{
		"size": size,
		"sort": []interface{}{map[string]interface{}{"@timestamp": map[string]string{"order": "desc"}}},
		"query": map[string]interface{}{
			"term": map[string]interface{}{"session_id.keyword": sessionID},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := a.client.Search(
		a.client.Search.WithContext(ctx),
		a.client.Search.WithIndex(a.index),
		a.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search turns: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search turns: %s", res.Status())
	}

	var decoded struct {
		Hits struct {
			Hits []struct {
				Source TurnDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	out := make([]TurnDocument, 0, len(decoded.Hits.Hits))
	for _, h := range decoded.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
