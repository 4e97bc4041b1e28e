// Package archive writes immutable JSON snapshots of record histories to a
// blob store. Each artifact is keyed by record and version so re-exporting an
// unchanged record is a no-op.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gennotes/internal/blob"
	"gennotes/pkg/domain"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const contentTypeJSON = "application/json"

// HistorySource supplies revision histories; *core.Service satisfies it.
type HistorySource interface {
	History(ctx context.Context, kind domain.EntityType, id int64) ([]domain.Revision, error)
}

// Artifact describes one exported history document.
type Artifact struct {
	Key       string            `json:"key"`
	Entity    domain.EntityType `json:"entity"`
	RecordID  int64             `json:"record_id"`
	Version   int64             `json:"version"`
	Size      int64             `json:"size"`
	ETag      string            `json:"etag,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	// Existing is set when the artifact was already archived and left untouched.
	Existing bool `json:"existing"`
}

// Exporter renders histories and stores them as create-only blobs.
type Exporter struct {
	source HistorySource
	store  blob.Store
	logger *zap.Logger
}

// NewExporter constructs an Exporter. A nil logger disables logging.
func NewExporter(source HistorySource, store blob.Store, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{source: source, store: store, logger: logger}
}

// Key returns the blob key for a record history at version.
func Key(kind domain.EntityType, id, version int64) string {
	return fmt.Sprintf("%s/%d/history-v%d.json", kind, id, version)
}

// Export archives the full history of a record at its latest version.
func (e *Exporter) Export(ctx context.Context, kind domain.EntityType, id int64) (Artifact, error) {
	history, err := e.source.History(ctx, kind, id)
	if err != nil {
		return Artifact{}, err
	}
	version := history[len(history)-1].Version
	key := Key(kind, id, version)
	log := e.logger.With(zap.String("key", key), zap.String("driver", string(e.store.Driver())))

	if info, err := e.store.Head(ctx, key); err == nil {
		log.Debug("history already archived")
		return artifactFrom(info, kind, id, version, true), nil
	} else if !errors.Is(err, blob.ErrNotFound) {
		return Artifact{}, errors.Wrapf(err, "probe %s", key)
	}

	payload, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return Artifact{}, errors.Wrap(err, "encode history")
	}
	info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentTypeJSON,
		Metadata: map[string]string{
			"entity":    string(kind),
			"record-id": strconv.FormatInt(id, 10),
			"version":   strconv.FormatInt(version, 10),
		},
	})
	if errors.Is(err, blob.ErrExists) {
		// Lost a race with a concurrent export of the same version.
		info, err = e.store.Head(ctx, key)
		if err != nil {
			return Artifact{}, errors.Wrapf(err, "probe %s", key)
		}
		return artifactFrom(info, kind, id, version, true), nil
	}
	if err != nil {
		return Artifact{}, errors.Wrapf(err, "store %s", key)
	}
	if info.Size == 0 {
		info.Size = int64(len(payload))
	}
	log.Info("history archived", zap.Int("revisions", len(history)), zap.Int64("bytes", info.Size))
	return artifactFrom(info, kind, id, version, false), nil
}

// List returns archived artifacts, optionally narrowed to one entity kind.
// Keys that do not follow the archive layout are skipped.
func (e *Exporter) List(ctx context.Context, kind domain.EntityType) ([]Artifact, error) {
	prefix := ""
	if kind != "" {
		prefix = string(kind) + "/"
	}
	infos, err := e.store.List(ctx, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "list archive")
	}
	out := make([]Artifact, 0, len(infos))
	for _, info := range infos {
		k, id, version, ok := ParseKey(info.Key)
		if !ok {
			continue
		}
		out = append(out, artifactFrom(info, k, id, version, true))
	}
	return out, nil
}

// ParseKey splits an archive key into its entity, record id and version.
func ParseKey(key string) (domain.EntityType, int64, int64, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return "", 0, 0, false
	}
	kind := domain.EntityType(parts[0])
	if kind != domain.EntityVariant && kind != domain.EntityRelation {
		return "", 0, 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, 0, false
	}
	name := parts[2]
	if !strings.HasPrefix(name, "history-v") || !strings.HasSuffix(name, ".json") {
		return "", 0, 0, false
	}
	version, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, "history-v"), ".json"), 10, 64)
	if err != nil || version <= 0 {
		return "", 0, 0, false
	}
	return kind, id, version, true
}

func artifactFrom(info blob.Info, kind domain.EntityType, id, version int64, existing bool) Artifact {
	return Artifact{
		Key:       info.Key,
		Entity:    kind,
		RecordID:  id,
		Version:   version,
		Size:      info.Size,
		ETag:      info.ETag,
		CreatedAt: info.LastModified,
		Existing:  existing,
	}
}
