// Package pomxml locates and rewrites the version fields of a Maven-style
// project descriptor without reformatting the rest of the file.
package pomxml

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/twpayne/go-vfs"
	"github.com/variantdev/libroll/pkg/vfsutil"
)

var (
	ErrManifestMissing       = errors.New("manifest not found")
	ErrFieldMissing          = errors.New("version field not found")
	ErrDependencyNotDeclared = errors.New("dependency not declared")
)

var propertyRef = regexp.MustCompile(`^\$\{([^}]+)\}$`)

type Editor struct {
	fs vfs.FS
}

func New(fs vfs.FS) *Editor {
	if fs == nil {
		fs = vfs.HostOSFS
	}
	return &Editor{fs: fs}
}

func (e *Editor) load(path string) (*document, error) {
	src, err := e.fs.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrManifestMissing, path)
	}
	if err != nil {
		return nil, err
	}

	doc, err := scan(src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

func (e *Editor) save(path string, doc *document, edits []edit) error {
	if len(edits) == 0 {
		return nil
	}
	out, err := apply(doc.src, edits)
	if err != nil {
		return fmt.Errorf("editing %s: %w", path, err)
	}
	return vfsutil.WriteFileAtomic(e.fs, path, out)
}

// ReadProjectVersion returns the trimmed text of the first version field.
func (e *Editor) ReadProjectVersion(path string) (string, error) {
	doc, err := e.load(path)
	if err != nil {
		return "", err
	}
	if doc.projectVersion == nil {
		return "", fmt.Errorf("%w: %s", ErrFieldMissing, path)
	}
	return doc.projectVersion.value(), nil
}

// WriteProjectVersion rewrites the first version field only.
func (e *Editor) WriteProjectVersion(path, newVersion string) error {
	doc, err := e.load(path)
	if err != nil {
		return err
	}
	if doc.projectVersion == nil {
		return fmt.Errorf("%w: %s", ErrFieldMissing, path)
	}
	return e.save(path, doc, doc.projectVersion.replacement(doc.src, newVersion))
}

// WriteDependencyVersion rewrites the version of every dependency block declaring artifactID.
// Blocks without an explicit version are left alone. A version given as a
// ${property} reference is changed at the property definition.
func (e *Editor) WriteDependencyVersion(path, artifactID, newVersion string) error {
	doc, err := e.load(path)
	if err != nil {
		return err
	}

	var (
		found bool
		edits []edit
	)

	for _, b := range doc.dependencies {
		if b.artifactID != artifactID {
			continue
		}
		found = true

		if b.version == nil {
			continue
		}

		target := b.version
		if m := propertyRef.FindStringSubmatch(b.version.value()); m != nil {
			prop, ok := doc.properties[m[1]]
			if !ok && builtinProperty(m[1]) {
				// Resolved by Maven from the model, e.g. ${project.version}, which is bumped separately.
				continue
			}
			if !ok {
				return fmt.Errorf("%w: property %q referenced by %s in %s", ErrFieldMissing, m[1], artifactID, path)
			}
			target = prop
		}

		edits = append(edits, target.replacement(doc.src, newVersion)...)
	}

	if !found {
		return fmt.Errorf("%w: %s in %s", ErrDependencyNotDeclared, artifactID, path)
	}

	return e.save(path, doc, edits)
}

// DependencyVersions returns the declared versions of artifactID, resolving property references.
func (e *Editor) DependencyVersions(path, artifactID string) ([]string, error) {
	doc, err := e.load(path)
	if err != nil {
		return nil, err
	}

	var versions []string
	found := false
	for _, b := range doc.dependencies {
		if b.artifactID != artifactID {
			continue
		}
		found = true
		if b.version == nil {
			continue
		}
		v := b.version.value()
		if m := propertyRef.FindStringSubmatch(v); m != nil {
			if prop, ok := doc.properties[m[1]]; ok {
				v = prop.value()
			}
		}
		versions = append(versions, v)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s in %s", ErrDependencyNotDeclared, artifactID, path)
	}
	return versions, nil
}

func builtinProperty(name string) bool {
	for _, prefix := range []string{"project.", "pom."} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
