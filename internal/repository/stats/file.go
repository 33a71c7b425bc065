package stats

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/pause-alarm/internal/config"
	"github.com/oshokin/pause-alarm/internal/domain/pause"
)

// Repository defines persistence operations for pause statistics.
type Repository interface {
	Load(ctx context.Context) (*pause.Snapshot, error)
	Save(ctx context.Context, snap *pause.Snapshot) error
}

// Field names of the persisted document.
const (
	fieldCount      = "count"
	fieldTotal      = "total"
	fieldMax        = "max"
	fieldLast       = "last"
	fieldRecent     = "recent"
	fieldDetectedAt = "detected_at"
	fieldDuration   = "duration"
)

var (
	// ErrNotFound is returned when the statistics file does not exist yet.
	ErrNotFound = errors.New("statistics not found")
	// errMalformed is returned for documents with fields of the wrong type.
	errMalformed = errors.New("malformed statistics")
)

// FileRepository stores a snapshot as a protobuf Struct encoded with protojson.
// Durations are Go duration strings, instants are RFC 3339 with nanoseconds.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu serializes file access.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads a snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*pause.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read statistics file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode statistics file: %w", err)
	}

	snap, err := fromStruct(&doc)
	if err != nil {
		return nil, fmt.Errorf("decode statistics file: %w", err)
	}

	return snap, nil
}

// Save writes snap to disk.
func (r *FileRepository) Save(_ context.Context, snap *pause.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := toStruct(snap)
	if err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write statistics file: %w", err)
	}

	return nil
}

// toStruct converts a snapshot into a protobuf Struct.
func toStruct(snap *pause.Snapshot) (*structpb.Struct, error) {
	recent := make([]any, 0, len(snap.Recent))
	for _, e := range snap.Recent {
		recent = append(recent, eventToMap(e))
	}

	return structpb.NewStruct(map[string]any{
		fieldCount:  snap.Count,
		fieldTotal:  snap.Total.String(),
		fieldMax:    snap.Max.String(),
		fieldLast:   eventToMap(snap.Last),
		fieldRecent: recent,
	})
}

func eventToMap(e pause.Event) map[string]any {
	var detectedAt string
	if !e.DetectedAt.IsZero() {
		detectedAt = e.DetectedAt.UTC().Format(time.RFC3339Nano)
	}

	return map[string]any{
		fieldDetectedAt: detectedAt,
		fieldDuration:   e.Duration.String(),
	}
}

// fromStruct converts a protobuf Struct back into a snapshot.
func fromStruct(doc *structpb.Struct) (*pause.Snapshot, error) {
	fields := doc.GetFields()

	total, err := parseDuration(fields[fieldTotal])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fieldTotal, err)
	}

	maxPause, err := parseDuration(fields[fieldMax])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fieldMax, err)
	}

	last, err := eventFromValue(fields[fieldLast])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fieldLast, err)
	}

	values := fields[fieldRecent].GetListValue().GetValues()
	recent := make([]pause.Event, 0, len(values))

	for i, v := range values {
		e, err := eventFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", fieldRecent, i, err)
		}

		recent = append(recent, e)
	}

	return &pause.Snapshot{
		Count:  int64(fields[fieldCount].GetNumberValue()),
		Total:  total,
		Max:    maxPause,
		Last:   last,
		Recent: recent,
	}, nil
}

func eventFromValue(v *structpb.Value) (pause.Event, error) {
	var e pause.Event

	if v == nil {
		return e, nil
	}

	obj := v.GetStructValue()
	if obj == nil {
		return e, errMalformed
	}

	d, err := parseDuration(obj.GetFields()[fieldDuration])
	if err != nil {
		return e, err
	}

	e.Duration = d

	if raw := obj.GetFields()[fieldDetectedAt].GetStringValue(); raw != "" {
		if e.DetectedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return e, fmt.Errorf("%w: %w", errMalformed, err)
		}
	}

	return e, nil
}

func parseDuration(v *structpb.Value) (time.Duration, error) {
	raw := v.GetStringValue()
	if raw == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errMalformed, err)
	}

	return d, nil
}
