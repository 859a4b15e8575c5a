package section_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/markdown-ticket/mdt/internal/section"
)

const sampleBody = `# Add dark mode

Intro paragraph.

## 1. Description

A theme toggle for the UI.

### 1.1 Background

Users asked for it.

## 2. Solution Analysis

Compare approaches.

## 3. Implementation

Code goes here.
`

func TestList_OutlineAndPaths(t *testing.T) {
	t.Parallel()

	sections := section.List(sampleBody)

	var paths []string
	for _, sec := range sections {
		paths = append(paths, sec.HierarchicalPath)
	}

	want := []string{
		"Add dark mode",
		"Add dark mode > 1. Description",
		"Add dark mode > 1. Description > 1.1 Background",
		"Add dark mode > 2. Solution Analysis",
		"Add dark mode > 3. Implementation",
	}

	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	if sections[1].HeaderLevel != 2 || sections[2].HeaderLevel != 3 {
		t.Errorf("levels = %d, %d", sections[1].HeaderLevel, sections[2].HeaderLevel)
	}
}

func TestList_IgnoresHeadersInsideCodeFences(t *testing.T) {
	t.Parallel()

	body := "# Real\n\n```\n# not a header\n```\n\n## Also real\n"

	sections := section.List(body)
	if len(sections) != 2 {
		t.Fatalf("found %d sections, want 2", len(sections))
	}

	if sections[0].HeaderText != "Real" || sections[1].HeaderText != "Also real" {
		t.Errorf("sections = %+v", sections)
	}
}

func TestGet_ThreeIdentifierFormsAgree(t *testing.T) {
	t.Parallel()

	identifiers := []string{
		"Description",       // bare text
		"1. Description",    // numbered label
		"## 1. Description", // exact header markup
	}

	var contents []string

	for _, identifier := range identifiers {
		content, err := section.Get(sampleBody, identifier)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", identifier, err)
		}

		contents = append(contents, content)
	}

	if contents[0] != contents[1] || contents[1] != contents[2] {
		t.Errorf("identifier forms disagree: %q", contents)
	}

	// The owned span stops at the next same-or-shallower header, so the
	// subsection's content is included.
	if !strings.Contains(contents[0], "Users asked for it.") {
		t.Errorf("subsection content missing from span: %q", contents[0])
	}

	if strings.Contains(contents[0], "Compare approaches.") {
		t.Errorf("span leaked into the next sibling: %q", contents[0])
	}
}

func TestGet_CaseInsensitive(t *testing.T) {
	t.Parallel()

	_, err := section.Get(sampleBody, "dEsCrIpTiOn")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	_, err := section.Get(sampleBody, "Rollout Plan")

	var notFound *section.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}

	if notFound.Identifier != "Rollout Plan" {
		t.Errorf("Identifier = %q", notFound.Identifier)
	}
}

func TestGet_AmbiguousListsAllPaths(t *testing.T) {
	t.Parallel()

	body := "# Top\n\n## 1. Alpha\n\n### Notes\n\nfirst\n\n## 2. Beta\n\n### Notes\n\nsecond\n"

	_, err := section.Get(body, "Notes")

	var ambiguous *section.AmbiguousError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("error = %v, want AmbiguousError", err)
	}

	want := []string{
		"Top > 1. Alpha > Notes",
		"Top > 2. Beta > Notes",
	}

	if diff := cmp.Diff(want, ambiguous.Paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_HierarchicalPathDisambiguates(t *testing.T) {
	t.Parallel()

	body := "# Top\n\n## 1. Alpha\n\n### Notes\n\nfirst\n\n## 2. Beta\n\n### Notes\n\nsecond\n"

	content, err := section.Get(body, "Top > 2. Beta > Notes")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !strings.Contains(content, "second") {
		t.Errorf("wrong section resolved: %q", content)
	}
}

func TestReplace_IsByteLocal(t *testing.T) {
	t.Parallel()

	result, err := section.Replace(sampleBody, "2. Solution Analysis", "Chosen: CSS variables.\n")
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	// Everything before the target's content and from the next header on
	// is byte-identical.
	headerIdx := strings.Index(sampleBody, "## 2. Solution Analysis\n")
	prefixEnd := headerIdx + len("## 2. Solution Analysis\n")
	suffixStart := strings.Index(sampleBody, "## 3. Implementation")

	wantPrefix := sampleBody[:prefixEnd]
	wantSuffix := sampleBody[suffixStart:]

	if !strings.HasPrefix(result, wantPrefix) {
		t.Error("bytes before the target span changed")
	}

	if !strings.HasSuffix(result, wantSuffix) {
		t.Error("bytes after the target span changed")
	}

	want := wantPrefix + "Chosen: CSS variables.\n" + wantSuffix
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestAppend_InsertsBeforeNextHeader(t *testing.T) {
	t.Parallel()

	result, err := section.Append(sampleBody, "1.1 Background", "Also requested by the design team.")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	idx := strings.Index(result, "Also requested by the design team.\n")
	nextHeader := strings.Index(result, "## 2. Solution Analysis")

	if idx < 0 || nextHeader < 0 || idx > nextHeader {
		t.Errorf("appended text misplaced:\n%s", result)
	}

	// Missing trailing newline is supplied so the next header keeps its
	// own line.
	if !strings.Contains(result, "design team.\n## 2. Solution Analysis") {
		t.Errorf("newline normalization missing:\n%s", result)
	}
}

func TestPrepend_InsertsRightAfterHeader(t *testing.T) {
	t.Parallel()

	result, err := section.Prepend(sampleBody, "3. Implementation", "> Status: draft\n")
	if err != nil {
		t.Fatalf("Prepend failed: %v", err)
	}

	if !strings.Contains(result, "## 3. Implementation\n> Status: draft\n") {
		t.Errorf("prepended text misplaced:\n%s", result)
	}

	if !strings.Contains(result, "Code goes here.") {
		t.Error("existing content lost")
	}
}

func TestSection_PreviewAndLength(t *testing.T) {
	t.Parallel()

	sections := section.List("# A\n\n" + strings.Repeat("word ", 40) + "\n")
	if len(sections) != 1 {
		t.Fatalf("found %d sections", len(sections))
	}

	if sections[0].ContentLength == 0 {
		t.Error("ContentLength = 0")
	}

	if len(sections[0].Preview) > 63 { // 60 chars plus ellipsis
		t.Errorf("preview too long: %q", sections[0].Preview)
	}

	if !strings.HasSuffix(sections[0].Preview, "...") {
		t.Errorf("long preview not elided: %q", sections[0].Preview)
	}
}

func TestGet_EmptyBody(t *testing.T) {
	t.Parallel()

	_, err := section.Get("", "Anything")

	var notFound *section.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
}
