package archive

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// DefaultEntryName is used when a title sanitizes to nothing.
const DefaultEntryName = "foto"

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	disallowedChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	underscoreRun   = regexp.MustCompile(`_+`)
	extensionChars  = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)
)

// Sanitize turns arbitrary user text into a name matching ^[A-Za-z0-9._-]+$.
// It never fails: when nothing survives, the sanitized fallback is returned,
// and when that is empty too, DefaultEntryName.
func Sanitize(raw, fallback string) string {
	if s := sanitize(raw); s != "" {
		return s
	}
	if s := sanitize(fallback); s != "" {
		return s
	}
	return DefaultEntryName
}

func sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	s = whitespaceRun.ReplaceAllString(s, "_")
	s = disallowedChars.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// SourceExt returns the extension of a storage path (".jpg"), or "" when the
// path has none or it is not plain alphanumeric.
func SourceExt(sourcePath string) string {
	ext := path.Ext(sourcePath)
	if !extensionChars.MatchString(ext) {
		return ""
	}
	return ext
}

// EntryName builds the archive name for one photo: the sanitized title with
// the source path's extension appended unless the title already ends with it.
func EntryName(title, sourcePath string) string {
	name := Sanitize(title, DefaultEntryName)
	ext := SourceExt(sourcePath)
	if ext != "" && !strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		name += ext
	}
	return name
}

// AttachmentName is the Content-Disposition filename for a download.
func AttachmentName(sessionName, fallback string) string {
	name := Sanitize(sessionName, fallback)
	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		return name
	}
	return name + ".zip"
}

// Deduper hands out names that are unique within one archive.
type Deduper struct {
	used map[string]int
}

func NewDeduper() *Deduper {
	return &Deduper{used: make(map[string]int)}
}

// Unique returns name unchanged the first time it is seen. Later calls insert
// "-N" before the extension (foto.jpg, foto-1.jpg, foto-2.jpg). The extension
// is whatever follows the last dot, or impliedExt when name has none.
// Generated names are reserved too, so a later literal "foto-1.jpg" becomes
// "foto-1-1.jpg" instead of colliding.
func (d *Deduper) Unique(name, impliedExt string) string {
	if _, seen := d.used[name]; !seen {
		d.used[name] = 0
		return name
	}

	ext := path.Ext(name)
	if ext == "" {
		ext = impliedExt
	}
	stem := strings.TrimSuffix(name, ext)

	for {
		d.used[name]++
		candidate := fmt.Sprintf("%s-%d%s", stem, d.used[name], ext)
		if _, taken := d.used[candidate]; !taken {
			d.used[candidate] = 0
			return candidate
		}
	}
}

// NameRequest is one raw title plus the storage path it will be read from.
type NameRequest struct {
	Title      string
	SourcePath string
}

// AssignNames sanitizes and dedupes a whole list up front, in order, so the
// numbering does not depend on which downloads finish first or fail.
func AssignNames(reqs []NameRequest) []string {
	d := NewDeduper()
	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = d.Unique(EntryName(r.Title, r.SourcePath), SourceExt(r.SourcePath))
	}
	return names
}
