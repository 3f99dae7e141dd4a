package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/html"

	"github.com/dannyswat/vcursor"
	"github.com/dannyswat/vcursor/transport/wsch"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

var words = []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}

func mainInner() error {
	addrVar := flag.String("addr", envOr("RELAY_ADDR", "localhost:8080"), "the relay address")
	docVar := flag.String("doc", "default", "the document to join")
	userVar := flag.String("user", "cursorbot", "the user id")
	nameVar := flag.String("name", "Cursor Bot", "the display name")
	intervalVar := flag.Duration("interval", 2*time.Second, "how often to move the caret")
	editVar := flag.Float64("edit-chance", 0.2, "probability of typing a word on each move")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addrVar, Path: "/docs/" + url.PathEscape(*docVar) + "/ws"}

	doc, err := vcursor.NewHTMLDocument("")
	if err != nil {
		return err
	}
	loop := vcursor.NewLoop()
	me := vcursor.Participant{ID: vcursor.NewParticipantID(*userVar), DisplayName: *nameVar}

	var sess *vcursor.Session
	client := wsch.New(u.String(), wsch.Options{
		OnConnect: func() {
			loop.Post(func() { sess.RequestRefreshAll("connected") })
		},
	})
	sess, err = vcursor.NewSession(me, doc, client, vcursor.SessionOptions{
		Executor:  loop,
		Scheduler: vcursor.LoopScheduler{Loop: loop},
	})
	if err != nil {
		return err
	}
	sess.OnPeersChanged(func() { logPeers(sess) })
	slog.Info("joining", "doc", *docVar, "participant", me.ID, "url", u.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = loop.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("connection failed", "err", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(*intervalVar)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				loop.Post(func() { step(sess, doc, *editVar) })
			case <-ctx.Done():
				return
			}
		}
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("Signal caught", "sig", sig)

	leaveCtx, leaveCancel := context.WithTimeout(ctx, time.Second)
	if err := loop.Do(leaveCtx, sess.Close); err != nil {
		slog.Warn("failed to leave cleanly", "err", err)
	}
	leaveCancel()
	cancel()

	wg.Wait()
	return nil
}

// step moves the caret somewhere random and sometimes types a word there.
func step(sess *vcursor.Session, doc *vcursor.HTMLDocument, editChance float64) {
	blocks := doc.Blocks()
	if len(blocks) == 0 {
		return
	}
	line := rand.IntN(len(blocks))
	col := rand.IntN(len([]rune(blocks[line].Text)) + 1)
	if err := sess.SetSelection(vcursor.Caret(vcursor.LineColumn(line, col))); err != nil {
		slog.Warn("failed to move caret", "err", err)
		return
	}
	if rand.Float64() >= editChance {
		return
	}
	edited, err := appendWord(doc, line, words[rand.IntN(len(words))])
	if err != nil {
		slog.Warn("failed to build edit", "err", err)
		return
	}
	if _, err := sess.CommitLocalEdit(edited); err != nil {
		slog.Warn("failed to commit edit", "err", err)
	}
}

// appendWord returns the document's HTML with word appended to block line.
func appendWord(doc *vcursor.HTMLDocument, line int, word string) (string, error) {
	scratch, err := vcursor.NewHTMLDocument(doc.HTML())
	if err != nil {
		return "", err
	}
	blocks := scratch.Blocks()
	if line >= len(blocks) {
		return "", fmt.Errorf("no block %d", line)
	}
	blocks[line].Element.AppendChild(&html.Node{Type: html.TextNode, Data: " " + word})
	return vcursor.RenderNode(scratch.Root())
}

func logPeers(sess *vcursor.Session) {
	peers := sess.Peers()
	if len(peers) == 0 {
		slog.Info("no peers")
		return
	}
	for id, c := range peers {
		attrs := []any{"peer", id, "name", c.DisplayName, "anchor", c.Selection.Anchor.String(), "stale", sess.Protocol().Stale(c)}
		if r, err := sess.Resolve(id); err != nil {
			attrs = append(attrs, "err", err)
		} else {
			attrs = append(attrs, "virtual", r.Start.Virtual, "offset", r.Start.Offset)
		}
		slog.Info("peer cursor", attrs...)
	}
}
