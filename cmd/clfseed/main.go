// clfseed seeds completed, spilled bucket files as torrents so peers can
// download ledger history in bounded chunks instead of replaying it.
package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"github.com/ledgerwatch/turbo-clf/log"
)

var trackers = [][]string{
	{
		"udp://tracker.openbittorrent.com:80",
		"udp://tracker.publicbt.com:80",
		"udp://coppersurfer.tk:6969/announce",
		"udp://open.demonii.com:1337",
		"udp://tracker.istole.it:6969",
		"http://bttracker.crunchbanglinux.org:6969/announce",
	},
}

func main() {
	dir := flag.String("dir", "", "directory holding bucket-*.xdr files to seed")
	flag.Parse()
	if *dir == "" {
		log.Error("missing -dir")
		os.Exit(1)
	}
	if err := seed(*dir); err != nil {
		log.Error("seeding failed", "err", err)
		os.Exit(1)
	}
}

func seed(dir string) error {
	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = dir
	cfg.Seed = true
	cfg.NoDHT = true
	cfg.DisableTrackers = false

	cl, err := torrent.NewClient(cfg)
	if err != nil {
		return err
	}
	defer cl.Close()

	files, err := bucketFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Warn("no bucket files to seed", "dir", dir)
		return nil
	}

	for _, path := range files {
		mi := &metainfo.MetaInfo{
			CreationDate: time.Now().Unix(),
			CreatedBy:    "turbo-clf",
			AnnounceList: trackers,
		}
		info := metainfo.Info{PieceLength: 16 * 1024}
		if err := info.BuildFromFilePath(path); err != nil {
			return err
		}
		mi.InfoBytes, err = bencode.Marshal(info)
		if err != nil {
			return err
		}
		tt, err := cl.AddTorrent(mi)
		if err != nil {
			return err
		}
		tt.VerifyData()
		if !tt.Seeding() {
			log.Warn("torrent not seeding", "name", tt.Name())
		}
		log.Info("seeding bucket", "name", tt.Name(), "infoHash", tt.InfoHash().HexString(),
			"magnet", mi.Magnet(tt.Name(), mi.HashInfoBytes()).String())
	}

	go func() {
		started := time.Now()
		for range time.Tick(10 * time.Second) {
			for _, tt := range cl.Torrents() {
				log.Info("seeding", "name", tt.Name(), "peers", len(tt.PeerConns()),
					"swarm", len(tt.KnownSwarm()), "uptime", time.Since(started))
			}
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	return nil
}

func bucketFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "bucket-") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
