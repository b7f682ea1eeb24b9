package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/mailfold/mailfold/internal/store"
)

const sampleMbox = `From alice@example.com Mon Jan  2 15:04:05 2006
Message-ID: <root@example.com>
Date: Mon, 02 Jan 2006 15:04:05 +0000
From: alice@example.com
To: bob@example.com
Subject: Plans

Shall we meet?

From bob@example.com Mon Jan  2 16:00:00 2006
Message-ID: <reply@example.com>
In-Reply-To: <root@example.com>
References: <root@example.com>
Date: Mon, 02 Jan 2006 16:00:00 +0000
From: bob@example.com
To: alice@example.com
Subject: Re: Plans

Yes, noon works.

From carol@example.com Tue Jan  3 09:00:00 2006
Message-ID: <other@example.com>
Date: Tue, 03 Jan 2006 09:00:00 +0000
From: carol@example.com
To: alice@example.com
Subject: Unrelated

Different topic entirely.
`

func testImporter(t *testing.T) (context.Context, *Importer, *store.Store) {
	t.Helper()

	url := os.Getenv("MAILFOLD_TEST_DB")
	if url == "" {
		t.Skip("MAILFOLD_TEST_DB not set")
	}

	ctx := context.Background()
	s, err := store.Open(ctx, url)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if _, err := s.DB().Exec(ctx, "TRUNCATE emails, storage"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctx, New(s.DB(), []string{"english"}, []string{store.LabelInbox}, log), s
}

func TestImportMbox(t *testing.T) {
	ctx, im, s := testImporter(t)

	stats, err := im.Mbox(ctx, strings.NewReader(sampleMbox))
	if err != nil {
		t.Fatalf("Mbox: %v", err)
	}
	if stats.Imported != 3 || stats.Skipped != 0 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want 3 imported", stats)
	}

	// The reply threads onto the root; the unrelated message roots its own.
	var rootThrid, replyThrid, otherThrid int64
	read := func(msgid string, dest *int64) {
		err := s.DB().QueryRow(ctx, "SELECT thrid FROM emails WHERE msgid = $1", msgid).Scan(dest)
		if err != nil {
			t.Fatalf("read thrid of %s: %v", msgid, err)
		}
	}
	read("<root@example.com>", &rootThrid)
	read("<reply@example.com>", &replyThrid)
	read("<other@example.com>", &otherThrid)

	if replyThrid != rootThrid {
		t.Errorf("reply thrid = %d, want root's %d", replyThrid, rootThrid)
	}
	if otherThrid == rootThrid {
		t.Error("unrelated message landed in the root thread")
	}

	// Configured labels plus \All land on every row.
	var labels []string
	err = s.DB().QueryRow(ctx,
		"SELECT labels FROM emails WHERE msgid = $1", "<root@example.com>",
	).Scan(&labels)
	if err != nil {
		t.Fatalf("read labels: %v", err)
	}
	if len(labels) != 2 {
		t.Errorf("labels = %v, want \\All and \\Inbox", labels)
	}

	// A second run finds everything already present.
	stats, err = im.Mbox(ctx, strings.NewReader(sampleMbox))
	if err != nil {
		t.Fatalf("Mbox rerun: %v", err)
	}
	if stats.Imported != 0 || stats.Skipped != 3 {
		t.Errorf("rerun stats = %+v, want 3 skipped", stats)
	}
}

func TestImportRawWithoutMsgID(t *testing.T) {
	ctx, im, s := testImporter(t)

	raw := []byte("From: a@example.com\r\nSubject: no id\r\n\r\nbody\r\n")
	imported, err := im.Raw(ctx, raw)
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if !imported {
		t.Fatal("message without Message-ID not imported")
	}

	var msgid string
	err = s.DB().QueryRow(ctx, "SELECT msgid FROM emails WHERE subj = $1", "no id").Scan(&msgid)
	if err != nil {
		t.Fatalf("read msgid: %v", err)
	}
	if !strings.HasSuffix(msgid, "@mailfold>") {
		t.Errorf("msgid = %q, want a synthesized id", msgid)
	}
}
