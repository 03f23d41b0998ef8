// Offline admin tool: inspect the shopkeeper save archive and the audit
// index without a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"shopcraft.gg/internal/persistence/archive"
	"shopcraft.gg/internal/persistence/indexdb"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "owners":
			ownersCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	savePath := fs.String("save", "./data/shopkeepers.sav", "save archive path")
	_ = fs.Parse(args)

	sav, err := archive.Read(*savePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	fmt.Printf("version=%d saved_at=%s shopkeepers=%d\n",
		sav.Header.Version, time.Unix(sav.Header.SavedAtUnix, 0).Format(time.RFC3339), len(sav.Shopkeepers))
	for _, rec := range sav.Shopkeepers {
		loc := "virtual"
		if rec.HasPos {
			loc = fmt.Sprintf("%s (%d,%d,%d)", rec.World, rec.X, rec.Y, rec.Z)
		}
		owner := ""
		if rec.OwnerName != "" {
			owner = " owner=" + rec.OwnerName
		}
		fmt.Printf("  #%d %s %s/%s %s%s offers=%d prices=%d\n",
			rec.ID, rec.UUID, rec.Type, rec.Object, loc, owner, len(rec.Offers), len(rec.Prices))
	}
}

func ownersCmd(args []string) {
	fs := flag.NewFlagSet("owners", flag.ExitOnError)
	savePath := fs.String("save", "./data/shopkeepers.sav", "save archive path")
	_ = fs.Parse(args)

	sav, err := archive.Read(*savePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	counts := map[string]int{}
	names := map[string]string{}
	for _, rec := range sav.Shopkeepers {
		if rec.OwnerUUID == "" {
			continue
		}
		counts[rec.OwnerUUID]++
		names[rec.OwnerUUID] = rec.OwnerName
	}
	for id, n := range counts {
		fmt.Printf("%s %s shops=%d\n", id, names[id], n)
	}
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dbPath := fs.String("db", "./data/audit.db", "audit index path")
	limit := fs.Int("limit", 50, "max entries")
	_ = fs.Parse(args)

	logger := log.New(os.Stderr, "[admin] ", 0)
	idx, err := indexdb.Open(*dbPath, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	entries, err := idx.Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Printf("#%d tick=%d %s shop=%d %s %s %s\n",
			e.Seq, e.Tick, e.Kind, e.ShopID, e.ShopUUID, e.ShopType, e.Detail)
	}
}
