package render

import (
	"strings"
	"testing"

	"github.com/jra3/taskgraph/internal/skeleton"
)

func lookupFrom(skeletons map[string]*skeleton.Skeleton) Lookup {
	return func(taskID string) (*skeleton.Skeleton, bool) {
		sk, ok := skeletons[taskID]
		return sk, ok
	}
}

func siblingsFrom(skeletons map[string]*skeleton.Skeleton) SiblingsLookup {
	return func(parentID string) []*skeleton.Skeleton {
		var out []*skeleton.Skeleton
		for _, sk := range skeletons {
			if sk.ReconstructedParentID == parentID {
				out = append(out, sk)
			}
		}
		return out
	}
}

func TestTree_Chain(t *testing.T) {
	t.Parallel()
	// R <- A <- B <- C, mirrors spec §8 scenario S6.
	r := &skeleton.Skeleton{TaskID: "R", Metadata: skeleton.Metadata{Title: "root"}}
	a := &skeleton.Skeleton{TaskID: "A", Metadata: skeleton.Metadata{Title: "a"}, ReconstructedParentID: "R"}
	b := &skeleton.Skeleton{TaskID: "B", Metadata: skeleton.Metadata{Title: "b"}, ReconstructedParentID: "A"}
	c := &skeleton.Skeleton{TaskID: "C", Metadata: skeleton.Metadata{Title: "c"}, ReconstructedParentID: "B"}

	skeletons := map[string]*skeleton.Skeleton{"R": r, "A": a, "B": b, "C": c}
	lookup := lookupFrom(skeletons)

	out, err := Tree("C", ViewChain, 2, lookup, siblingsFrom(skeletons))
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}

	idxR := strings.Index(out, "root")
	idxA := strings.Index(out, "(A)")
	idxB := strings.Index(out, "(B)")
	idxC := strings.Index(out, "(C)")
	if !(idxR < idxA && idxA < idxB && idxB < idxC) {
		t.Errorf("chain view should list root through target in order, got:\n%s", out)
	}
}

func TestTree_CycleDetected(t *testing.T) {
	t.Parallel()
	a := &skeleton.Skeleton{TaskID: "A", ReconstructedParentID: "B"}
	b := &skeleton.Skeleton{TaskID: "B", ReconstructedParentID: "A"}
	skeletons := map[string]*skeleton.Skeleton{"A": a, "B": b}
	lookup := lookupFrom(skeletons)

	if _, err := Tree("A", ViewChain, 0, lookup, siblingsFrom(skeletons)); err == nil {
		t.Error("Tree() should fail on a cyclic ancestor chain instead of looping forever")
	}
}

func TestTruncateText(t *testing.T) {
	t.Parallel()
	text := "l1\nl2\nl3\nl4\nl5\nl6"
	got := truncateText(text, 2)
	if !strings.HasPrefix(got, "l1\nl2\n[...]") {
		t.Errorf("truncateText() = %q", got)
	}
	if !strings.HasSuffix(got, "l5\nl6") {
		t.Errorf("truncateText() tail = %q", got)
	}
}

func TestTruncateText_DisabledAtZero(t *testing.T) {
	t.Parallel()
	text := "l1\nl2\nl3"
	if got := truncateText(text, 0); got != text {
		t.Errorf("truncateText(n=0) = %q, want unchanged", got)
	}
}

func TestTree_Single(t *testing.T) {
	t.Parallel()
	sk := &skeleton.Skeleton{TaskID: "solo", Metadata: skeleton.Metadata{Title: "solo task"}}
	skeletons := map[string]*skeleton.Skeleton{"solo": sk}
	lookup := lookupFrom(skeletons)
	out, err := Tree("solo", ViewSingle, 0, lookup, siblingsFrom(skeletons))
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	if !strings.Contains(out, "solo task") {
		t.Errorf("Tree() = %q", out)
	}
}

func TestTree_ClusterSiblings(t *testing.T) {
	t.Parallel()
	// parent P with three children; clustering on any child should render
	// P plus all three siblings, not just P (spec §4.G "cluster = the
	// parent's full sibling set").
	p := &skeleton.Skeleton{TaskID: "P", Metadata: skeleton.Metadata{Title: "parent"}}
	a := &skeleton.Skeleton{TaskID: "A", Metadata: skeleton.Metadata{Title: "child a"}, ReconstructedParentID: "P"}
	b := &skeleton.Skeleton{TaskID: "B", Metadata: skeleton.Metadata{Title: "child b"}, ReconstructedParentID: "P"}
	c := &skeleton.Skeleton{TaskID: "C", Metadata: skeleton.Metadata{Title: "child c"}, ReconstructedParentID: "P"}

	skeletons := map[string]*skeleton.Skeleton{"P": p, "A": a, "B": b, "C": c}
	out, err := Tree("A", ViewCluster, 0, lookupFrom(skeletons), siblingsFrom(skeletons))
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	for _, want := range []string{"parent", "child a", "child b", "child c"} {
		if !strings.Contains(out, want) {
			t.Errorf("cluster view missing %q, got:\n%s", want, out)
		}
	}
}

func TestTree_ClusterNoParent(t *testing.T) {
	t.Parallel()
	sk := &skeleton.Skeleton{TaskID: "root-only", Metadata: skeleton.Metadata{Title: "root only"}}
	skeletons := map[string]*skeleton.Skeleton{"root-only": sk}
	out, err := Tree("root-only", ViewCluster, 0, lookupFrom(skeletons), siblingsFrom(skeletons))
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	if !strings.Contains(out, "root only") {
		t.Errorf("Tree() = %q", out)
	}
}
