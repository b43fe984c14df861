package scm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/byte4ever/trychange/exec"
)

// Subversion gathers the diff and author identity for a
// subversion checkout.
type Subversion struct {
	params Params
	root   string

	diffed  bool
	diff    string
	diffErr error
	files   []string
}

// NewSubversion locates the checkout root governing dir and
// returns a source for it. The root is the nearest ancestor
// directory carrying a .svn marker.
func NewSubversion(
	dir string,
	params Params,
) (*Subversion, error) {
	const errCtx = "opening subversion checkout"

	root, err := svnCheckoutRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return &Subversion{
		params: params,
		files:  params.Files,
		root:   root,
	}, nil
}

// LocalRoot returns the absolute checkout root path.
func (s *Subversion) LocalRoot() string {
	return s.root
}

// Files returns the explicit file list, or the locally
// modified files enumerated during diff generation.
func (s *Subversion) Files() []string {
	return s.files
}

// JobName returns the caller-supplied name unchanged; the
// subversion backend has nothing to derive one from.
func (s *Subversion) JobName() (string, error) {
	return s.params.Name, nil
}

// Diff returns the concatenated per-file diff of pending
// changes. Generated at most once, then cached.
func (s *Subversion) Diff() (string, error) {
	if s.diffed {
		return s.diff, s.diffErr
	}

	s.diffed = true
	s.diff, s.diffErr = s.generateDiff()

	return s.diff, s.diffErr
}

// Email returns the caller-supplied address, or the username
// stored in the svn auth cache for this checkout's repository.
// The svn credential is conventionally an email address.
func (s *Subversion) Email() (string, error) {
	const errCtx = "resolving subversion email"

	if s.params.Email != "" {
		return s.params.Email, nil
	}

	out, err := exec.Ex(s.root, "svn", "info")
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	repoRoot := svnInfoItem(out, "Repository Root")
	if repoRoot == "" {
		return "", nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	authDir := filepath.Join(
		home, ".subversion", "auth", "svn.simple",
	)

	email, err := svnCachedUsername(authDir, repoRoot)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return email, nil
}

// generateDiff computes a per-file diff for every file in the
// change and concatenates the fragments. Directory entries are
// silently skipped.
func (s *Subversion) generateDiff() (string, error) {
	const errCtx = "generating subversion diff"

	if len(s.files) == 0 {
		files, err := s.changedFiles()
		if err != nil {
			return "", fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		s.files = files
	}

	var sb strings.Builder

	for _, f := range s.files {
		// Diffing a directory re-emits every child's
		// hunks, and the children are listed on their
		// own. Directory entries contribute nothing.
		fi, statErr := os.Stat(
			filepath.Join(s.root, f),
		)
		if statErr == nil && fi.IsDir() {
			continue
		}

		out, err := exec.Ex(s.root, "svn", "diff", f)
		if err != nil {
			return "", fmt.Errorf(
				"%s: %s: %w", errCtx, f, err,
			)
		}

		sb.WriteString(out)
	}

	return sb.String(), nil
}

// changedFiles enumerates locally modified paths via a status
// query. Unversioned and external entries are skipped.
func (s *Subversion) changedFiles() ([]string, error) {
	const errCtx = "listing changed files"

	out, err := exec.Ex(s.root, "svn", "status")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return parseSvnStatus(out), nil
}

// parseSvnStatus extracts paths from svn status output. The
// first column is the item status; '?' (unversioned) and 'X'
// (external) entries are not part of the change.
func parseSvnStatus(out string) []string {
	var files []string

	for _, line := range strings.Split(out, "\n") {
		if len(line) <= statusPathColumn {
			continue
		}

		switch line[0] {
		case '?', 'X':
			continue
		}

		path := strings.TrimSpace(
			line[statusPathColumn:],
		)
		if path != "" {
			files = append(files, path)
		}
	}

	return files
}

// statusPathColumn is where the path starts on an svn status
// line: seven status columns plus one separating space.
const statusPathColumn = 8

// svnCheckoutRoot walks up from dir and returns the nearest
// ancestor containing a .svn metadata directory.
func svnCheckoutRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for cur := abs; ; {
		marker := filepath.Join(cur, ".svn")
		if fi, err := os.Stat(marker); err == nil &&
			fi.IsDir() {
			return cur, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf(
				"no .svn directory above %s", abs,
			)
		}

		cur = parent
	}
}

// svnInfoItem extracts the value of a "Key: value" line from
// svn info output.
func svnInfoItem(out string, key string) string {
	prefix := key + ": "

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(
				line[len(prefix):],
			)
		}
	}

	return ""
}

// svnCachedUsername scans the svn.simple auth cache for the
// record whose realm covers repoRoot and returns its stored
// username. Returns empty when no matching record exists.
func svnCachedUsername(
	authDir string,
	repoRoot string,
) (string, error) {
	const errCtx = "reading svn auth cache"

	entries, err := os.ReadDir(authDir)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		path := filepath.Join(authDir, e.Name())

		data, err := os.ReadFile(path) //nolint:gosec // cache path derives from $HOME
		if err != nil {
			return "", fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		record, err := parseSvnAuthRecord(data)
		if err != nil {
			// Skip records in a format we do not
			// understand.
			continue
		}

		realm := record["svn:realmstring"]
		if realm == "" ||
			!strings.Contains(realm, repoRoot) {
			continue
		}

		return record["username"], nil
	}

	return "", nil
}

// parseSvnAuthRecord decodes subversion's hash-file format: a
// sequence of "K <len>\n<key>\nV <len>\n<value>\n" entries
// terminated by an END line. Lengths are byte counts, so
// values may themselves contain newlines.
func parseSvnAuthRecord(
	data []byte,
) (map[string]string, error) {
	record := make(map[string]string)

	pos := 0

	readLine := func() (string, error) {
		nl := strings.IndexByte(string(data[pos:]), '\n')
		if nl < 0 {
			return "", errors.New(
				"truncated auth record",
			)
		}

		line := string(data[pos : pos+nl])
		pos += nl + 1

		return line, nil
	}

	readCounted := func(header string) (string, error) {
		n, err := strconv.Atoi(
			strings.TrimSpace(header[2:]),
		)
		if err != nil {
			return "", err
		}

		if pos+n > len(data) {
			return "", errors.New(
				"truncated auth record",
			)
		}

		val := string(data[pos : pos+n])
		// Skip the value bytes plus the trailing
		// newline.
		pos += n + 1

		return val, nil
	}

	for {
		header, err := readLine()
		if err != nil {
			return nil, err
		}

		if header == "END" {
			return record, nil
		}

		if !strings.HasPrefix(header, "K ") {
			return nil, fmt.Errorf(
				"unexpected header %q", header,
			)
		}

		key, err := readCounted(header)
		if err != nil {
			return nil, err
		}

		header, err = readLine()
		if err != nil {
			return nil, err
		}

		if !strings.HasPrefix(header, "V ") {
			return nil, fmt.Errorf(
				"unexpected header %q", header,
			)
		}

		val, err := readCounted(header)
		if err != nil {
			return nil, err
		}

		record[key] = val
	}
}
