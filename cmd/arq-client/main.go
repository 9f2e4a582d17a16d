// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/arqgo/arqgo/internal/arqclient"
	"github.com/arqgo/arqgo/internal/config"
	"github.com/arqgo/arqgo/internal/logging"
	"github.com/arqgo/arqgo/internal/protocol"
)

func main() {
	configPath := flag.String("config", "/etc/arqgo/client.yaml", "path to client config file")
	keyStr := flag.String("key", "", "pre-shared fernet key, overriding crypto.key in the config file")
	flag.Parse()

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	encoded := cfg.Crypto.Key
	if *keyStr != "" {
		encoded = *keyStr
	}
	if encoded == "" {
		fmt.Fprintln(os.Stderr, "Error: no pre-shared key configured (set crypto.key or pass --key)")
		os.Exit(1)
	}
	key, err := protocol.NewKeyFromString(encoded)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading key: %v\n", err)
		os.Exit(1)
	}

	c, err := arqclient.Dial(cfg, key, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting: %v\n", err)
		os.Exit(1)
	}

	if err := arqclient.RunREPL(c, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
