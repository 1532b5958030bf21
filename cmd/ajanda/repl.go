package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/ajanda/dialog"
)

// runREPL drives a single dialog session from stdin until EOF or /quit.
func runREPL(ctx context.Context, rt *runtime) error {
	sess := dialog.NewSession(shortuuid.New())
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Konuşmaya başlayabilirsin. Çıkmak için /quit yaz.")
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			fmt.Print("> ")
			continue
		case line == "/quit" || line == "/exit":
			fmt.Println("Görüşürüz!")
			return nil
		}

		res := rt.engine.Turn(ctx, line, rt.turnContext(), sess)
		fmt.Println(res.Text)
		if res.Kind == dialog.ResultFail && res.StepsUsed > 0 {
			fmt.Printf("(adım: %d)\n", res.StepsUsed)
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}
