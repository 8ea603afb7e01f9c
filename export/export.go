// Package export is the Export Codec: it serializes a stored session
// into a single gzip-compressed ustar archive with a fixed five-file
// layout, and decodes that archive back into its constituent parts for
// round-trip verification. runtime/events/session_export.go shells out to
// ffmpeg to mux audio/video tracks, which this domain has no use for — so
// only its config-struct-plus-Export(ctx) shape is grounded on that file;
// the byte framing itself is the standard library's archive/tar and
// compress/gzip, since exact ustar byte offsets are required and no
// third-party archiving library would improve on the standard library here.
package export

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/drillforge/core/eventlog"
	"github.com/drillforge/core/persistence"
	"github.com/drillforge/core/session"
)

// schemaVersion is the session.json metadata.version this codec writes,
// a plain integer on the wire. Compatibility checking on Decode is done
// internally via semver so a future breaking schema bump can still be
// range-checked without changing the wire type.
const schemaVersion = 1

// supportedSchemaVersion is the major version this codec can decode.
var supportedSchemaVersion = semver.MustParse("1.0.0")

// ProblemMeta mirrors the subset of problem.Problem carried in session.json.
type ProblemMeta struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TimingMeta carries the session's wall-clock bookkeeping.
type TimingMeta struct {
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// Metadata is session.json's "metadata" object.
type Metadata struct {
	Version    int         `json:"version"`
	SessionID  string      `json:"sessionId"`
	ExportedAt string      `json:"exportedAt"`
	Problem    ProblemMeta `json:"problem"`
	Preset     string      `json:"preset"`
	Timing     TimingMeta  `json:"timing"`
	EventCount int         `json:"eventCount"`
}

// SessionJSON is the full structure written to session.json.
type SessionJSON struct {
	Metadata   Metadata                       `json:"metadata"`
	Events     []eventlog.Event               `json:"events"`
	Reflection *eventlog.ReflectionResponses  `json:"reflection"`
}

// Archive is the result of a successful Export: the encoded bytes and the
// filename the embedding application should offer for download.
type Archive struct {
	Bytes    []byte
	Filename string
}

// Now is overridable in tests so exportedAt/the filename date are
// deterministic; defaults to time.Now.
var Now = time.Now

// Export builds a gzip(tar(...)) archive from a session record and its
// optional audio record (nil if the session recorded no audio). The five
// entries are written in a fixed order: README.md, session.json, code.txt,
// invariants.txt, and audio.<ext> when audio is non-nil.
func Export(rec *persistence.SessionRecord, audio *persistence.AudioRecord) (Archive, error) {
	state := session.Fold(rec.Events, 0)
	// now stays in the host's local timezone for the download filename
	// (spec section 4.8: "date is the export date in the host timezone");
	// only the session.json exportedAt field is normalized to UTC.
	now := Now()

	meta := Metadata{
		Version:   schemaVersion,
		SessionID: rec.ID,
		ExportedAt: now.UTC().Format(time.RFC3339),
		Problem: ProblemMeta{
			ID:          rec.Problem.ID,
			Title:       rec.Problem.Title,
			Description: rec.Problem.Description,
		},
		Preset:     rec.PresetName,
		Timing:     TimingMeta{CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt},
		EventCount: len(rec.Events),
	}
	doc := SessionJSON{Metadata: meta, Events: rec.Events, Reflection: state.Reflection}
	sessionJSON, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Archive{}, fmt.Errorf("marshal session.json: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	if err := writeEntry(tw, "README.md", []byte(readmeText(rec))); err != nil {
		return Archive{}, err
	}
	if err := writeEntry(tw, "session.json", sessionJSON); err != nil {
		return Archive{}, err
	}
	if err := writeEntry(tw, "code.txt", []byte(state.Code)); err != nil {
		return Archive{}, err
	}
	if err := writeEntry(tw, "invariants.txt", []byte(state.Invariants)); err != nil {
		return Archive{}, err
	}
	if audio != nil {
		ext := audioExtension(audio.MimeType)
		blob := concatChunks(audio.Chunks)
		if err := writeEntry(tw, "audio."+ext, blob); err != nil {
			return Archive{}, err
		}
	}

	if err := tw.Close(); err != nil {
		return Archive{}, fmt.Errorf("close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return Archive{}, fmt.Errorf("close gzip writer: %w", err)
	}

	return Archive{
		Bytes:    buf.Bytes(),
		Filename: BuildFilename(rec.Problem.Title, now),
	}, nil
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("write tar content for %s: %w", name, err)
	}
	return nil
}

func readmeText(rec *persistence.SessionRecord) string {
	return fmt.Sprintf(
		"This archive contains a recorded interview practice session.\n\n"+
			"Problem: %s\n"+
			"Preset: %s\n\n"+
			"Files:\n"+
			"  session.json   - event log and metadata\n"+
			"  code.txt       - the final submitted code\n"+
			"  invariants.txt - preparation notes\n"+
			"  audio.*        - recorded audio, if any\n",
		rec.Problem.Title, rec.PresetName,
	)
}

func concatChunks(chunks [][]byte) []byte {
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// audioExtension derives a file extension from an audio MIME type: "webm"
// for audio/webm*, "m4a" for audio/mp4*, falling back to "audio" for
// anything else this domain doesn't expect to see, matching
// persistence.extensionFromMIME's fallback.
func audioExtension(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/webm"):
		return "webm"
	case strings.HasPrefix(mimeType, "audio/mp4"):
		return "m4a"
	default:
		return "audio"
	}
}

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// BuildFilename produces the <problem-slug>-<YYYY-MM-DD>.tar.gz download
// name offered to the embedding application.
func BuildFilename(problemTitle string, exportedAt time.Time) string {
	slug := slugNonAlnum.ReplaceAllString(strings.ToLower(problemTitle), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 50 {
		slug = slug[:50]
	}
	if slug == "" {
		slug = "session"
	}
	return fmt.Sprintf("%s-%s.tar.gz", slug, exportedAt.Format("2006-01-02"))
}

// Decoded is the result of Decode: the raw contents of each archive entry.
type Decoded struct {
	README      string
	Session     SessionJSON
	Code        string
	Invariants  string
	AudioBytes  []byte
	AudioExt    string
	HasAudio    bool
}

// Decode parses a gzip(tar(...)) archive produced by Export back into its
// constituent files, verifying the embedded schema version is one this
// codec supports.
func Decode(archiveBytes []byte) (Decoded, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archiveBytes))
	if err != nil {
		return Decoded{}, fmt.Errorf("open gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var dec Decoded
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Decoded{}, fmt.Errorf("read tar header: %w", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return Decoded{}, fmt.Errorf("read tar content for %s: %w", hdr.Name, err)
		}
		switch {
		case hdr.Name == "README.md":
			dec.README = string(content)
		case hdr.Name == "session.json":
			if err := json.Unmarshal(content, &dec.Session); err != nil {
				return Decoded{}, fmt.Errorf("parse session.json: %w", err)
			}
		case hdr.Name == "code.txt":
			dec.Code = string(content)
		case hdr.Name == "invariants.txt":
			dec.Invariants = string(content)
		case strings.HasPrefix(hdr.Name, "audio."):
			dec.HasAudio = true
			dec.AudioExt = strings.TrimPrefix(hdr.Name, "audio.")
			dec.AudioBytes = content
		}
	}

	v, err := semver.NewVersion(fmt.Sprintf("%d.0.0", dec.Session.Metadata.Version))
	if err != nil {
		return Decoded{}, fmt.Errorf("parse session.json metadata.version: %w", err)
	}
	if v.Major() != supportedSchemaVersion.Major() {
		return Decoded{}, fmt.Errorf("unsupported archive schema version %d", dec.Session.Metadata.Version)
	}

	return dec, nil
}
