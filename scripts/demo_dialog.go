//go:build ignore
// +build ignore

// demo_dialog is a manual end-to-end walkthrough of the dialog engine against
// a throwaway SQLite database, without any LLM. It exercises slot filling,
// the confirmation gate and the status query in one scripted conversation.
// NOT executed during CI (go test ./...).
//
// Usage:
//
//	go run scripts/demo_dialog.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hrygo/ajanda/dialog"
	"github.com/hrygo/ajanda/internal/profile"
	"github.com/hrygo/ajanda/nlu"
	"github.com/hrygo/ajanda/store/db/sqlite"
	"github.com/hrygo/ajanda/tools"
)

func main() {
	dir, err := os.MkdirTemp("", "ajanda-demo-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	p := &profile.Profile{Mode: "demo", Data: dir, Driver: "sqlite", DSN: filepath.Join(dir, "demo.db")}
	driver, err := sqlite.NewDB(p)
	if err != nil {
		log.Fatal(err)
	}
	defer driver.Close()

	ctx := context.Background()
	if err := driver.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	registry := tools.NewRegistry(tools.NewCalendarTools(driver.ScheduleStore())...)
	engine := dialog.New(registry, nlu.New())

	tc := dialog.TurnContext{
		DeterministicRender: true,
		Windows:             nlu.DefaultWindows(time.Now(), time.Local),
		TZName:              "Local",
	}
	sess := dialog.NewSession("demo")

	script := []string{
		"yarın saat 15:00'te 30 dakika toplantı ekle",
		"evet",
		"yarın takvimimde ne var",
		"toplantıyı iptal et",
		"1",
	}
	for _, utterance := range script {
		fmt.Printf("> %s\n", utterance)
		res := engine.Turn(ctx, utterance, tc, sess)
		fmt.Printf("[%s] %s\n\n", res.Kind, res.Text)
	}
}
