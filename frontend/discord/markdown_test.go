package discord

import (
	"strings"
	"testing"
)

func TestSplitMessage_ShortMessagePassesThrough(t *testing.T) {
	got := SplitMessage("hello **world**", MessageLimit)
	if len(got) != 1 || got[0] != "hello **world**" {
		t.Errorf("got %v", got)
	}
}

func TestSplitMessage_Empty(t *testing.T) {
	if got := SplitMessage("", MessageLimit); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestSplitMessage_BreaksOnLineBoundaries(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("this line talks about one of the records in the collection\n")
	}
	chunks := SplitMessage(b.String(), 500)

	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want several", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 500 {
			t.Errorf("chunk %d is %d chars, over limit", i, len(c))
		}
		for _, line := range strings.Split(c, "\n") {
			if line != "" && line != "this line talks about one of the records in the collection" {
				t.Errorf("chunk %d contains a broken line: %q", i, line)
			}
		}
	}
}

func TestSplitMessage_ReopensCodeFenceAcrossChunks(t *testing.T) {
	var b strings.Builder
	b.WriteString("Here is the fix:\n\n```go\n")
	for i := 0; i < 30; i++ {
		b.WriteString("fmt.Println(\"a fairly long line of example output goes here\")\n")
	}
	b.WriteString("```\n")

	chunks := SplitMessage(b.String(), 600)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want several", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 600 {
			t.Errorf("chunk %d is %d chars, over limit", i, len(c))
		}
		if strings.Count(c, "```")%2 != 0 {
			t.Errorf("chunk %d has an unbalanced fence:\n%s", i, c)
		}
	}
	for i, c := range chunks[1:] {
		if strings.Contains(c, "fmt.Println") && !strings.Contains(c, "```go") {
			t.Errorf("continuation chunk %d lost the fence language:\n%s", i+1, c)
		}
	}
}

func TestSplitMessage_InlineCodeIsNotAFence(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("use the ```go build``` command to compile the module from source\n")
	}
	chunks := SplitMessage(b.String(), 400)

	for i, c := range chunks {
		if strings.HasPrefix(c, "```go\n") {
			t.Errorf("chunk %d wrongly treated inline code as a fence:\n%s", i, c)
		}
	}
}

func TestSplitMessage_HardSplitsSingleLongLine(t *testing.T) {
	long := strings.Repeat("x", 1200)
	chunks := SplitMessage(long, 500)

	if len(chunks) < 3 {
		t.Fatalf("chunks = %d, want at least 3", len(chunks))
	}
	var total int
	for i, c := range chunks {
		if len(c) > 500 {
			t.Errorf("chunk %d is %d chars, over limit", i, len(c))
		}
		total += len(c)
	}
	if total != 1200 {
		t.Errorf("total = %d, want 1200 (no content lost)", total)
	}
}

func TestSplit_UsesDiscordLimit(t *testing.T) {
	long := strings.Repeat("a line of text\n", 400)
	for i, c := range Split(long) {
		if len(c) > MessageLimit {
			t.Errorf("chunk %d is %d chars, over Discord's limit", i, len(c))
		}
	}
}
