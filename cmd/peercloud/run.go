package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peercloud/peercloud"
	"github.com/peercloud/peercloud/keystore"
	"github.com/peercloud/peercloud/network"
	"github.com/peercloud/peercloud/network/udp"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "join the cloud, print its events and send every line read on stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return run(ctx, c, os.Stdin, cmd.OutOrStdout())
	},
}

func loadKey(c *Config) (peercloud.SecretKey, error) {
	if c.Key == "" {
		return nil, nil
	}
	store, err := keystore.Open(c.KeyStore)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Load(c.Key)
}

func run(ctx context.Context, c *Config, in io.Reader, out io.Writer) error {
	logger := c.Logger()
	sk, err := loadKey(c)
	if err != nil {
		return err
	}
	period, err := c.GetStatsPeriod()
	if err != nil {
		return err
	}
	udpNet, err := udp.NewNetwork(c.ListenAddress(), logger)
	if err != nil {
		return err
	}
	defer udpNet.Close()
	local, err := network.NewInterfaces()
	if err != nil {
		return err
	}
	reportNet := peercloud.NewReportNetwork(udpNet)
	peer := peercloud.NewReportPeer(peercloud.NewPeer(reportNet, local, c.PeerConfig(sk, logger)))
	defer peer.Close()
	if err := peer.Join(); err != nil {
		return err
	}
	fmt.Fprintf(out, "peer %s listening on %v\n", peer.ID(), udpNet.LocalEndpoints())

	go func() {
		for e := range peer.Events() {
			fmt.Fprintln(out, e.String())
		}
	}()
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if err := peer.Send(scanner.Bytes()); err != nil {
				logger.Warn("event", "send", "err", err)
			}
		}
	}()

	var tick <-chan time.Time
	if period > 0 {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			s := peer.Stats()
			logger.Info("event", "stats", "network", fmt.Sprint(s.Network), "neighbors", fmt.Sprint(s.Neighbors))
		}
	}
}
