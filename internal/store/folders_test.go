package store

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCreateFolderUniquePerOwner(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	testUser(t, st, "alice", 10000)
	testUser(t, st, "bob", 10000)

	folder, err := st.CreateFolder(ctx, "Projects", "alice", now)
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	if !strings.HasPrefix(folder.ID, "fo-") {
		t.Fatalf("expected fo- prefixed id, got %q", folder.ID)
	}

	if _, err := st.CreateFolder(ctx, "Projects", "alice", now); err != ErrFolderExists {
		t.Fatalf("expected ErrFolderExists, got %v", err)
	}

	// Same name for a different owner is fine.
	if _, err := st.CreateFolder(ctx, "Projects", "bob", now); err != nil {
		t.Fatalf("create folder for bob: %v", err)
	}
}

func TestListFilesGroupedOrderAndEmptyFolders(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	testUser(t, st, "alice", 10000)

	for _, name := range []string{"zeta", "alpha", "empty"} {
		if _, err := st.CreateFolder(ctx, name, "alice", now); err != nil {
			t.Fatalf("create folder %s: %v", name, err)
		}
	}

	uploads := []struct {
		filename, folder string
	}{
		{"loose.txt", ""},
		{"z1.txt", "zeta"},
		{"a1.txt", "alpha"},
		{"a2.txt", "alpha"},
	}
	for i, u := range uploads {
		p := uploadParams("alice", u.filename, strings.Repeat(string(rune('a'+i)), 64), 10)
		p.Folder = u.folder
		mustUpload(t, st, p)
	}

	groups, err := st.ListFilesGrouped(ctx, "alice")
	if err != nil {
		t.Fatalf("grouped list: %v", err)
	}

	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	want := []string{"", "alpha", "empty", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("expected groups %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected groups %v, got %v", want, names)
		}
	}

	if len(groups[0].Files) != 1 || groups[0].Files[0].Filename != "loose.txt" {
		t.Fatalf("expected default group with loose.txt, got %+v", groups[0].Files)
	}
	if len(groups[1].Files) != 2 {
		t.Fatalf("expected 2 files in alpha, got %d", len(groups[1].Files))
	}
	if len(groups[2].Files) != 0 {
		t.Fatalf("expected empty folder to list with no files, got %d", len(groups[2].Files))
	}
}
