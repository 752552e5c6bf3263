package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/hyperjump/vecshard/internal/entryid"
	"github.com/hyperjump/vecshard/internal/models"
)

// Payload keys written with every point.
const (
	payloadEntryID     = "entry_id"
	payloadProjectID   = "project_id"
	payloadFingerprint = "fingerprint"
	payloadShardID     = "shard_id"
	payloadMetadata    = "metadata"
)

const qdrantScrollBatch = 256

// QdrantConfig holds the connection settings of a Qdrant backend.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	VectorSize int
	UseTLS     bool
	APIKey     string
}

// QdrantGateway implements Gateway on a Qdrant collection. Points are keyed by entry ID,
// which is a UUID derived from (project_id, fingerprint). Qdrant collections have a fixed
// dimension, so entries whose vector length differs from VectorSize are rejected.
type QdrantGateway struct {
	client     *qdrant.Client
	collection string
	vectorSize int
}

// NewQdrantGateway connects to Qdrant and creates the collection if it does not exist.
func NewQdrantGateway(ctx context.Context, cfg QdrantConfig) (*QdrantGateway, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name is required")
	}
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("qdrant: vector size must be positive")
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	g := &QdrantGateway{client: client, collection: cfg.Collection, vectorSize: cfg.VectorSize}
	if err := g.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return g, nil
}

func (g *QdrantGateway) ensureCollection(ctx context.Context) error {
	exists, err := g.client.CollectionExists(ctx, g.collection)
	if err != nil {
		return fmt.Errorf("qdrant: checking collection %s: %w", g.collection, err)
	}
	if exists {
		return nil
	}
	err = g.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: g.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(g.vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: creating collection %s: %w", g.collection, err)
	}
	return nil
}

// Upsert writes a single point.
func (g *QdrantGateway) Upsert(ctx context.Context, entry *models.VectorEntry) error {
	return g.UpsertBatch(ctx, []*models.VectorEntry{entry})
}

// UpsertBatch writes all points in one request and waits for it to be applied.
func (g *QdrantGateway) UpsertBatch(ctx context.Context, entries []*models.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		p, err := g.pointFromEntry(e)
		if err != nil {
			return err
		}
		points[i] = p
	}
	_, err := g.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: g.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upserting %d points: %w", len(points), err)
	}
	return nil
}

// Delete removes the point of (projectID, fingerprint).
func (g *QdrantGateway) Delete(ctx context.Context, projectID, fingerprint string) error {
	_, err := g.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: g.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{qdrant.NewIDUUID(entryid.New(projectID, fingerprint))},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: deleting point: %w", err)
	}
	return nil
}

// DeleteAll removes all points of projectID and returns how many there were.
func (g *QdrantGateway) DeleteAll(ctx context.Context, projectID string) (int, error) {
	n, err := g.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: g.collection,
		Filter:         projectFilter(projectID),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: counting project points: %w", err)
	}
	_, err = g.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: g.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: projectFilter(projectID),
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: deleting project points: %w", err)
	}
	return int(n), nil
}

// LoadAll scrolls through every point of projectID.
func (g *QdrantGateway) LoadAll(ctx context.Context, projectID string) ([]*models.VectorEntry, error) {
	var out []*models.VectorEntry
	err := g.scroll(ctx, projectFilter(projectID), true, func(p *qdrant.RetrievedPoint) error {
		e, err := entryFromPoint(p)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// ListProjects scrolls the whole collection collecting distinct project IDs.
func (g *QdrantGateway) ListProjects(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	err := g.scroll(ctx, nil, false, func(p *qdrant.RetrievedPoint) error {
		id := p.GetPayload()[payloadProjectID].GetStringValue()
		if _, ok := seen[id]; !ok && id != "" {
			seen[id] = struct{}{}
			out = append(out, id)
		}
		return nil
	})
	return out, err
}

func (g *QdrantGateway) scroll(ctx context.Context, filter *qdrant.Filter, withVectors bool, fn func(*qdrant.RetrievedPoint) error) error {
	var offset *qdrant.PointId
	for {
		points, next, err := g.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: g.collection,
			Filter:         filter,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(qdrantScrollBatch)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(withVectors),
		})
		if err != nil {
			return fmt.Errorf("qdrant: scrolling points: %w", err)
		}
		for _, p := range points {
			if err := fn(p); err != nil {
				return err
			}
		}
		if next == nil || len(points) == 0 {
			return nil
		}
		offset = next
	}
}

// Close closes the client connection.
func (g *QdrantGateway) Close() error {
	return g.client.Close()
}

func (g *QdrantGateway) pointFromEntry(e *models.VectorEntry) (*qdrant.PointStruct, error) {
	if err := validateEntry(e); err != nil {
		return nil, err
	}
	if len(e.Vector) != g.vectorSize {
		return nil, fmt.Errorf("qdrant: vector length %d does not match collection size %d", len(e.Vector), g.vectorSize)
	}
	payload, err := payloadFromEntry(e)
	if err != nil {
		return nil, err
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(e.ID),
		Vectors: qdrant.NewVectors(e.Vector...),
		Payload: payload,
	}, nil
}

func payloadFromEntry(e *models.VectorEntry) (map[string]*qdrant.Value, error) {
	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return map[string]*qdrant.Value{
		payloadEntryID:     stringValue(e.ID),
		payloadProjectID:   stringValue(e.ProjectID),
		payloadFingerprint: stringValue(e.Fingerprint),
		payloadShardID:     stringValue(e.ShardID),
		payloadMetadata:    stringValue(string(metadataJSON)),
	}, nil
}

func entryFromPoint(p *qdrant.RetrievedPoint) (*models.VectorEntry, error) {
	payload := p.GetPayload()
	e := &models.VectorEntry{
		ID:          payload[payloadEntryID].GetStringValue(),
		ProjectID:   payload[payloadProjectID].GetStringValue(),
		Fingerprint: payload[payloadFingerprint].GetStringValue(),
		ShardID:     payload[payloadShardID].GetStringValue(),
		Vector:      []float32{},
	}
	if e.ID == "" {
		e.ID = p.GetId().GetUuid()
	}
	if v := vectorFromOutput(p.GetVectors()); v != nil {
		e.Vector = v
	}
	if raw := payload[payloadMetadata].GetStringValue(); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &e.Metadata); err != nil {
			return nil, fmt.Errorf("point %s: failed to unmarshal metadata: %w", e.ID, err)
		}
	}
	return e, nil
}

func vectorFromOutput(vectors *qdrant.VectorsOutput) []float32 {
	vec := vectors.GetVector()
	if vec == nil {
		return nil
	}
	if dense := vec.GetDense(); dense != nil {
		return dense.GetData()
	}
	return vec.GetData()
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func projectFilter(projectID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: payloadProjectID,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: projectID},
						},
					},
				},
			},
		},
	}
}
