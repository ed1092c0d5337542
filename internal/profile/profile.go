// Package profile enumerates face profiles from the public image
// directory. A profile is any file named <Name>-id.<ext>; the filename is
// the sole binding between a recognized name and a displayable image.
package profile

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const idSuffix = "-id"

// imageExts lists accepted image extensions in resolution order.
var imageExts = []string{".png", ".jpg", ".jpeg", ".gif"}

// Profile binds a recognizable name to its display image.
type Profile struct {
	Name      string `json:"name"`
	ImagePath string `json:"imagePath"`
}

// Library scans a fixed directory for profile images and resolves display
// images for recognized users.
type Library struct {
	dir         string
	placeholder string
}

// NewLibrary creates a library over dir. placeholder is the image used
// for guests and for known users without a profile image; relative paths
// are resolved against dir.
func NewLibrary(dir, placeholder string) *Library {
	if placeholder != "" && !filepath.IsAbs(placeholder) {
		placeholder = filepath.Join(dir, placeholder)
	}
	return &Library{dir: dir, placeholder: placeholder}
}

// Scan enumerates all profiles in the directory, sorted by name. A
// missing directory yields an empty list, not an error: the mirror can
// run in guest-only mode.
func (l *Library) Scan() ([]Profile, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var profiles []Profile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := parseProfileName(entry.Name())
		if !ok {
			continue
		}
		profiles = append(profiles, Profile{
			Name:      name,
			ImagePath: filepath.Join(l.dir, entry.Name()),
		})
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// ResolveImage returns the display image path for user, or the
// placeholder when the user is empty, "Guest", or has no profile image.
func (l *Library) ResolveImage(user string) string {
	if user == "" || user == "Guest" {
		return l.placeholder
	}
	for _, ext := range imageExts {
		path := filepath.Join(l.dir, user+idSuffix+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}

	// Extensions with unconventional casing are still valid profiles; fall
	// back to a directory scan so resolution agrees with Scan.
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return l.placeholder
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := parseProfileName(entry.Name()); ok && name == user {
			return filepath.Join(l.dir, entry.Name())
		}
	}
	return l.placeholder
}

// Placeholder returns the resolved placeholder image path.
func (l *Library) Placeholder() string {
	return l.placeholder
}

// parseProfileName extracts the profile name from a filename following
// the <Name>-id.<ext> convention.
func parseProfileName(filename string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	supported := false
	for _, e := range imageExts {
		if ext == e {
			supported = true
			break
		}
	}
	if !supported {
		return "", false
	}

	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if !strings.HasSuffix(base, idSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(base, idSuffix)
	if name == "" {
		return "", false
	}
	return name, true
}
