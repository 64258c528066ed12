// keyctl is the keywire operator CLI. It looks keys up over the record
// stream and manages the key table through the admin plane.
//
//	keyctl get <key>          lookup one key over the wire protocol
//	keyctl put <key> <value>  store a value via the admin plane
//	keyctl del <key>          delete a key via the admin plane
//	keyctl keys               list stored keys
//	keyctl ping               print server health
//
// Keys accept decimal or 0x-prefixed hex.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/keywire/internal/client"
	"github.com/danmuck/keywire/internal/config"
	"github.com/danmuck/keywire/internal/observability"
	"github.com/danmuck/keywire/internal/protocol"
	"github.com/danmuck/keywire/internal/store"
)

func main() {
	observability.InitLogger("keyctl")

	configPath := flag.String("config", "cmd/keyctl/config.toml", "path to keyctl config")
	serverAddr := flag.String("server", "", "override record stream address")
	adminAddr := flag.String("admin", "", "override admin base URL")
	token := flag.String("token", "", "override auth token")
	timeout := flag.Duration("timeout", 10*time.Second, "per-command timeout")
	flag.Parse()

	cfg := config.DefaultClientConfig()
	loaded, err := config.LoadClientConfig(*configPath)
	switch {
	case err == nil:
		cfg = loaded
	case errors.Is(err, os.ErrNotExist):
		log.Debug().Str("path", *configPath).Msg("config not found, using defaults")
	default:
		log.Fatal().Err(err).Msg("failed to load keyctl config")
	}
	if *serverAddr != "" {
		cfg.ServerAddr = *serverAddr
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}
	if *token != "" {
		cfg.AuthToken = *token
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch args[0] {
	case "get":
		err = runGet(ctx, cfg, args[1:])
	case "put":
		err = runPut(ctx, cfg, args[1:])
	case "del":
		err = runDel(ctx, cfg, args[1:])
	case "keys":
		err = runKeys(ctx, cfg)
	case "ping":
		err = runPing(ctx, cfg)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", args[0]).Msg("keyctl command failed")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: keyctl [flags] <get|put|del|keys|ping> [args]")
	flag.PrintDefaults()
}

func runGet(ctx context.Context, cfg config.ClientConfig, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: keyctl get <key>")
	}
	key, err := store.ParseKey(args[0])
	if err != nil {
		return err
	}

	c, err := client.New(client.Config{
		ServerAddr:         cfg.ServerAddr,
		ClientID:           cfg.ID,
		RecordKind:         cfg.RecordKind,
		AuthToken:          cfg.AuthToken,
		MaxConnectAttempts: cfg.MaxAttempts,
		Session:            config.SessionSettings(cfg.Session),
	})
	if err != nil {
		return err
	}
	sess, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	resp, err := sess.Lookup(ctx, key)
	if err != nil {
		return err
	}
	switch resp.Status {
	case protocol.StatusOK:
		fmt.Printf("%s\n", resp.Value.Bytes())
		return nil
	case protocol.StatusNotFound:
		return fmt.Errorf("key %s not found", store.FormatKey(key))
	default:
		return fmt.Errorf("lookup failed: %s: %s", resp.Status, resp.Message)
	}
}

func runPut(ctx context.Context, cfg config.ClientConfig, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: keyctl put <key> <value>")
	}
	key, err := store.ParseKey(args[0])
	if err != nil {
		return err
	}
	admin, err := client.NewAdmin(cfg.AdminAddr, cfg.AuthToken)
	if err != nil {
		return err
	}
	if err := admin.Put(ctx, key, []byte(args[1])); err != nil {
		return err
	}
	fmt.Printf("stored %s (%d bytes)\n", store.FormatKey(key), len(args[1]))
	return nil
}

func runDel(ctx context.Context, cfg config.ClientConfig, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: keyctl del <key>")
	}
	key, err := store.ParseKey(args[0])
	if err != nil {
		return err
	}
	admin, err := client.NewAdmin(cfg.AdminAddr, cfg.AuthToken)
	if err != nil {
		return err
	}
	if err := admin.Delete(ctx, key); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", store.FormatKey(key))
	return nil
}

func runKeys(ctx context.Context, cfg config.ClientConfig) error {
	admin, err := client.NewAdmin(cfg.AdminAddr, cfg.AuthToken)
	if err != nil {
		return err
	}
	keys, err := admin.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func runPing(ctx context.Context, cfg config.ClientConfig) error {
	admin, err := client.NewAdmin(cfg.AdminAddr, cfg.AuthToken)
	if err != nil {
		return err
	}
	health, err := admin.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("status=%s keys=%d bytes=%d active_sessions=%d\n",
		health.Status, health.Keys, health.Bytes, health.ActiveSessions)
	return nil
}
