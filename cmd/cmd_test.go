package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fakeyudi/partline/internal/export"
	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/session"
	"github.com/fakeyudi/partline/internal/store"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	resetFlags(root)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// resetFlags puts every flag of c and its subcommands back to its default so
// one run does not leak into the next.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// testEnv points every piece of on-disk state at temp dirs and returns the
// database path and export directory.
func testEnv(t *testing.T) (dbFile, outDir string) {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", filepath.Join(tmp, "home"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	dbFile = filepath.Join(tmp, "db", "partline.db")
	outDir = filepath.Join(tmp, "out")
	t.Setenv("PARTLINE_DB_PATH", dbFile)
	t.Setenv("PARTLINE_OUTPUT_DIR", outDir)
	t.Setenv("PARTLINE_WATCH", "false")
	return dbFile, outDir
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := executeCommand(rootCmd, args...)
	if err != nil {
		t.Fatalf("%s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func loadRecords(t *testing.T, dbFile string, f partition.Filter) []partition.Record {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, dbFile)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	recs, err := db.LoadRecords(ctx, f)
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func TestDoubleOpenError(t *testing.T) {
	testEnv(t)
	mustRun(t, "open", "--end", "1000", "--animal", "m1")

	out, err := executeCommand(rootCmd, "open", "--end", "1000", "--animal", "m2")
	if err == nil {
		t.Fatal("expected an error from double-open, got nil")
	}
	combined := out + err.Error()
	if !strings.Contains(combined, "session already in progress") {
		t.Errorf("expected error to contain %q, got: %q", "session already in progress", combined)
	}
}

func TestOpenRequiresEnd(t *testing.T) {
	testEnv(t)
	if _, err := executeCommand(rootCmd, "open"); err == nil || !strings.Contains(err.Error(), "--end") {
		t.Errorf("err = %v", err)
	}
}

func TestOpenRejectsSubMillisecondRange(t *testing.T) {
	dbFile, _ := testEnv(t)
	_, err := executeCommand(rootCmd, "open", "--end", "1970-01-01T00:00:00.1005Z", "--animal", "p")
	if err == nil || !strings.Contains(err.Error(), "whole millisecond") {
		t.Fatalf("err = %v", err)
	}
	st, err := session.NewSessionStore()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("a session was saved: %v", err)
	}

	mustRun(t, "open", "--end", "1970-01-01T00:00:00.100Z", "--animal", "p")
	if _, err := executeCommand(rootCmd, "cut", "0", "1970-01-01T00:00:00.0305Z"); err == nil {
		t.Fatal("cut at a sub-millisecond instant should fail")
	}
	mustRun(t, "cut", "0", "30")
	if recs := loadRecords(t, dbFile, partition.Filter{Animal: "p"}); len(recs) != 2 {
		t.Fatalf("stored records = %+v", recs)
	}
	mustRun(t, "close", "--no-export")
	if out := mustRun(t, "open", "--end", "100", "--animal", "p"); !strings.Contains(out, "(2 partitions)") {
		t.Errorf("reopen = %q", out)
	}
}

func TestOpenCutListFlow(t *testing.T) {
	dbFile, _ := testEnv(t)
	out := mustRun(t, "open", "--end", "1000", "--animal", "m1")
	if !strings.Contains(out, "animal=m1") || !strings.Contains(out, "(1 partitions)") {
		t.Errorf("open output: %q", out)
	}

	mustRun(t, "cut", "0", "400")
	out = mustRun(t, "list")
	if !strings.Contains(out, "1970-01-01T00:00:00.400Z") {
		t.Errorf("list missing the cut instant:\n%s", out)
	}

	recs := loadRecords(t, dbFile, partition.Filter{Animal: "m1"})
	if len(recs) != 2 || recs[0].ID == 0 || recs[1].ID == 0 {
		t.Fatalf("stored records = %+v", recs)
	}

	out = mustRun(t, "status")
	for _, want := range []string{"Context: animal=m1", "Partitions: 2", "Changes: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
}

func TestCutOutsidePartitionFails(t *testing.T) {
	dbFile, _ := testEnv(t)
	mustRun(t, "open", "--end", "1000")
	if _, err := executeCommand(rootCmd, "cut", "0", "1000"); err == nil {
		t.Fatal("cut at the partition end should fail")
	}
	if _, err := executeCommand(rootCmd, "cut", "x", "10"); err == nil {
		t.Fatal("non-numeric index should fail")
	}
	if recs := loadRecords(t, dbFile, partition.Filter{}); len(recs) != 1 {
		t.Errorf("failed cut wrote %d records", len(recs))
	}
}

func TestEditAppliesOnlyGivenFlags(t *testing.T) {
	dbFile, _ := testEnv(t)
	mustRun(t, "types", "add", "1", "grooming", "#ff0000")
	mustRun(t, "open", "--end", "1000", "--animal", "m1")

	mustRun(t, "edit", "0", "--title", "first", "--type", "1")
	mustRun(t, "edit", "0", "--subtitle", "second")

	recs := loadRecords(t, dbFile, partition.Filter{Animal: "m1"})
	if len(recs) != 1 {
		t.Fatalf("records = %+v", recs)
	}
	r := recs[0]
	if r.Title != "first" || r.Subtitle != "second" || r.TypeID == nil || *r.TypeID != 1 {
		t.Errorf("record = %+v", r)
	}

	if _, err := executeCommand(rootCmd, "edit", "0", "--type", "9"); err == nil {
		t.Error("unknown type should be rejected")
	}
	if _, err := executeCommand(rootCmd, "edit", "0"); err == nil {
		t.Error("edit without flags should fail")
	}

	mustRun(t, "edit", "0", "--clear-category")
	if r := loadRecords(t, dbFile, partition.Filter{Animal: "m1"})[0]; r.TypeID != nil || r.Title != "first" {
		t.Errorf("after clear: %+v", r)
	}
}

func TestNextAndPrev(t *testing.T) {
	testEnv(t)
	mustRun(t, "open", "--end", "1000")
	mustRun(t, "cut", "0", "300")
	mustRun(t, "cut", "1", "600")

	if out := mustRun(t, "next", "300"); !strings.HasPrefix(out, "2\t") {
		t.Errorf("next 300 = %q", out)
	}
	if out := mustRun(t, "prev", "600"); !strings.HasPrefix(out, "0\t") {
		t.Errorf("prev 600 = %q", out)
	}
	if out := mustRun(t, "next", "900"); strings.TrimSpace(out) != "none" {
		t.Errorf("next 900 = %q", out)
	}
}

func TestCloseWithoutSession(t *testing.T) {
	testEnv(t)
	_, err := executeCommand(rootCmd, "close")
	if err == nil || !strings.Contains(err.Error(), "no active session") {
		t.Errorf("err = %v", err)
	}
}

func TestCloseExportsBundle(t *testing.T) {
	_, outDir := testEnv(t)
	mustRun(t, "open", "--end", "1000", "--animal", "m1")
	mustRun(t, "note", "looked fine")
	mustRun(t, "cut", "0", "500")
	out := mustRun(t, "close", "-m", "done", "--format", "json")
	if !strings.Contains(out, "Session closed.") {
		t.Errorf("close output: %q", out)
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "partline-animal-m1-*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("exports = %v (%v)", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	b, err := export.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Partitions) != 2 || len(b.Notes) != 2 || !b.Notes[1].IsSummary || len(b.Journal) != 1 {
		t.Errorf("bundle = %+v", b)
	}
	if err := b.Validate(); err != nil {
		t.Errorf("exported bundle does not validate: %v", err)
	}

	st, err := session.NewSessionStore()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load(); err != session.ErrNoSession {
		t.Errorf("session still present: %v", err)
	}
}

func TestCloseNoExport(t *testing.T) {
	_, outDir := testEnv(t)
	mustRun(t, "open", "--end", "1000")
	mustRun(t, "close", "--no-export")
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Errorf("--no-export wrote to %s", outDir)
	}
}

func TestStatusNoSession(t *testing.T) {
	testEnv(t)
	if out := mustRun(t, "status"); !strings.Contains(out, "no active session") {
		t.Errorf("status = %q", out)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	dbFile, outDir := testEnv(t)
	mustRun(t, "types", "add", "2", "rearing", "#00ff00")
	mustRun(t, "open", "--end", "1000", "--animal", "m1")
	mustRun(t, "cut", "0", "250")
	mustRun(t, "edit", "1", "--title", "up", "--type", "2")

	bundlePath := filepath.Join(outDir, "m1.md")
	mustRun(t, "export", "-o", bundlePath)
	mustRun(t, "close", "--no-export")

	out := mustRun(t, "view", bundlePath, "--plain")
	for _, want := range []string{"## Partitions", "animal=m1", "up"} {
		if !strings.Contains(out, want) {
			t.Errorf("view --plain missing %q:\n%s", want, out)
		}
	}

	// Wipe the context, then bring it back from the bundle.
	ctx := context.Background()
	db, err := store.Open(ctx, dbFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SaveRecords(ctx, partition.Filter{Animal: "m1"}, nil); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if out := mustRun(t, "import", bundlePath, "--dry-run"); !strings.Contains(out, "is valid") {
		t.Errorf("dry run = %q", out)
	}
	if recs := loadRecords(t, dbFile, partition.Filter{Animal: "m1"}); len(recs) != 0 {
		t.Fatalf("dry run wrote %d records", len(recs))
	}

	mustRun(t, "import", bundlePath)
	recs := loadRecords(t, dbFile, partition.Filter{Animal: "m1"})
	if len(recs) != 2 || recs[1].Title != "up" || recs[1].TypeID == nil || *recs[1].TypeID != 2 {
		t.Errorf("imported = %+v", recs)
	}
	if out := mustRun(t, "contexts"); !strings.Contains(out, "animal=m1\t2 records") {
		t.Errorf("contexts = %q", out)
	}
}

func TestImportRejectsInvalidBundle(t *testing.T) {
	dbFile, _ := testEnv(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"context":{"animal":"m1"},"range":{"start":"1970-01-01T00:00:00Z","end":"1970-01-01T00:00:01Z"},"partitions":[{"start":"1970-01-01T00:00:00.5Z","title":"late"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := executeCommand(rootCmd, "import", path); err == nil {
		t.Fatal("a bundle that does not cover its range should be rejected")
	}
	if recs := loadRecords(t, dbFile, partition.Filter{Animal: "m1"}); len(recs) != 0 {
		t.Errorf("rejected import wrote %d records", len(recs))
	}
}

func TestImportRefusesConflictingSubtype(t *testing.T) {
	dbFile, _ := testEnv(t)
	mustRun(t, "types", "add", "1", "grooming", "#ff0000")
	mustRun(t, "types", "add", "2", "rearing", "#00ff00")
	mustRun(t, "types", "add-subtype", "5", "1", "face")
	mustRun(t, "open", "--end", "1000", "--animal", "a")
	mustRun(t, "edit", "0", "--type", "1", "--subtype", "5")
	mustRun(t, "close", "--no-export")

	// Same subtype id, filed under the other type.
	path := filepath.Join(t.TempDir(), "b.json")
	bundle := `{"context":{"animal":"b"},
"range":{"start":"1970-01-01T00:00:00Z","end":"1970-01-01T00:00:01Z"},
"types":[{"id":2,"name":"rearing","color":"#00ff00"}],
"subtypes":[{"id":5,"type_id":2,"name":"face"}],
"partitions":[{"start":"1970-01-01T00:00:00Z","end":"1970-01-01T00:00:01Z","title":"up","type_id":2,"subtype_id":5}]}`
	if err := os.WriteFile(path, []byte(bundle), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := executeCommand(rootCmd, "import", path)
	if !errors.Is(err, store.ErrCatalogConflict) {
		t.Fatalf("import = %v, want a catalog conflict", err)
	}
	if recs := loadRecords(t, dbFile, partition.Filter{Animal: "b"}); len(recs) != 0 {
		t.Errorf("conflicting import wrote %d records", len(recs))
	}

	// The existing context still opens with its original pairing.
	out := mustRun(t, "open", "--end", "1000", "--animal", "a")
	if !strings.Contains(out, "(1 partitions)") {
		t.Errorf("open = %q", out)
	}
	if out := mustRun(t, "types", "list"); !strings.Contains(out, "face") {
		t.Errorf("types list = %q", out)
	}
}

func TestTypesList(t *testing.T) {
	testEnv(t)
	if out := mustRun(t, "types", "list"); !strings.Contains(out, "no types defined") {
		t.Errorf("empty list = %q", out)
	}
	mustRun(t, "types", "add", "1", "grooming", "#FF0000")
	mustRun(t, "types", "add-subtype", "10", "1", "face")
	out := mustRun(t, "types", "list")
	for _, want := range []string{"grooming", "#ff0000", "face"} {
		if !strings.Contains(out, want) {
			t.Errorf("types list missing %q:\n%s", want, out)
		}
	}
	if _, err := executeCommand(rootCmd, "types", "add", "0", "x", "#000000"); err == nil {
		t.Error("id 0 should be rejected")
	}
	if _, err := executeCommand(rootCmd, "types", "add-subtype", "11", "7", "orphan"); err == nil {
		t.Error("subtype of a missing type should be rejected")
	}
}

func TestViewPlainSession(t *testing.T) {
	testEnv(t)
	mustRun(t, "open", "--end", "2000", "--box", "b3")
	mustRun(t, "note", "check lighting")
	out := mustRun(t, "view", "--plain")
	for _, want := range []string{"box=b3", "check lighting", "## Journal"} {
		if !strings.Contains(out, want) {
			t.Errorf("view --plain missing %q:\n%s", want, out)
		}
	}
}

func TestJournalTimestampsUseClock(t *testing.T) {
	testEnv(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	mustRun(t, "open", "--end", "1000")
	mustRun(t, "cut", "0", "10")

	st, err := session.NewSessionStore()
	if err != nil {
		t.Fatal(err)
	}
	s, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Journal) != 1 || !s.Journal[0].Timestamp.Equal(fixed) || s.Journal[0].Op != "cut" {
		t.Errorf("journal = %+v", s.Journal)
	}
}
