package git

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const diff = `diff --git a/include/Dog.h b/include/Dog.h
index 1111111..2222222 100644
--- a/include/Dog.h
+++ b/include/Dog.h
@@ -3 +3,2 @@ class Dog : public Animal {
-    void fetch();
+    void fetch();
+    void speak() const override;
diff --git a/Cat.h b/Cat.h
index 3333333..4444444 100644
--- a/Cat.h
+++ b/Cat.h
@@ -10,2 +9,0 @@ public:
-    void purr();
-    void nap();
@@ -20 +19 @@
-};
+} ;
`

func TestParseDiff(t *testing.T) {
	got, err := parseDiff([]byte(diff))
	if err != nil {
		t.Fatalf("parseDiff: %v", err)
	}
	want := []ChangedFile{
		{Path: "include/Dog.h", ChangedLines: []int{3, 4}},
		{Path: "Cat.h", ChangedLines: []int{9, 19}},
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("parseDiff mismatch (-want +got):\n%s", d)
	}
}

func TestParseDiff_Empty(t *testing.T) {
	got, err := parseDiff(nil)
	if err != nil {
		t.Fatalf("parseDiff: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no changes, got %v", got)
	}
}
