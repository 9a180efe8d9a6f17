package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bs2609/fs2/internal/autoindexnode"
	"github.com/bs2609/fs2/internal/communicator"
	"github.com/bs2609/fs2/internal/download"
	"github.com/bs2609/fs2/internal/httpshare"
	"github.com/bs2609/fs2/internal/metrics"
	"github.com/bs2609/fs2/internal/ratelimit"
	"github.com/bs2609/fs2/internal/shareengine"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var (
		alias            string
		clientToken      string
		port             int
		httpAddr         string
		indexnodes       []string
		shares           []string
		stateDir         string
		downloadDir      string
		uploadLimit      int
		downloadLimit    int
		downloadWorkers  int
		slotsPerPeer     int
		autoIndexnodeOn  bool
		autoIndexnodePort int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Export configured shares and serve downloads to peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger().WithField("role", "client")
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := os.MkdirAll(stateDir, 0o755); err != nil {
				return err
			}
			if err := os.MkdirAll(downloadDir, 0o755); err != nil {
				return err
			}

			identity := communicator.Identity{
				Alias:       alias,
				ClientToken: clientToken,
				Port:        port,
				AvatarHash:  avatarHash(alias),
			}
			comm := communicator.New(identity, log)

			uploadBucket := ratelimit.New(uploadLimit)
			downloadBucket := ratelimit.New(downloadLimit)
			m := metrics.NewClient(prometheus.DefaultRegisterer)

			shareMgr := shareengine.NewManager(uploadBucket, comm.OnShareChange, log)
			for _, spec := range shares {
				name, root, ok := strings.Cut(spec, "=")
				if !ok {
					log.WithField("share", spec).Warn("ignoring malformed --share, want name=path")
					continue
				}
				listPath := filepath.Join(stateDir, name+".FileList")
				s, err := shareMgr.AddShare(name, root, listPath)
				if err != nil {
					return err
				}
				shareMgr.RequestRefresh(ctx, s)
			}

			slots := httpshare.NewSlotQueue(slotsPerPeer)
			shareServer := httpshare.NewServer(shareMgr, uploadBucket, slots, m, log)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.Handle("/", shareServer)
			httpSrv := &http.Server{Addr: httpAddr, Handler: mux}

			for _, url := range indexnodes {
				comm.AddIndexnode(ctx, url)
			}

			queuePath := filepath.Join(stateDir, "downloads.fs2dlq")
			saver := download.NewAutoSaver(2 * time.Second)
			var queue *download.Queue
			onQueueChanged := func() {
				saver.Trigger(queue, queuePath, func(err error) {
					log.WithError(err).Warn("failed to persist download queue")
				})
			}
			queue, err := download.LoadFromDisk(queuePath, onQueueChanged)
			if err != nil {
				queue = download.New(onQueueChanged)
			}

			liveStats := download.NewLiveStats()
			var sourceProvider *download.IndexnodeSourceProvider
			if len(indexnodes) > 0 {
				sourceProvider = download.NewIndexnodeSourceProvider(indexnodes[0])
			}
			fetcher := &download.HTTPFetcher{Client: http.DefaultClient}

			scheduler := download.NewScheduler(queue, downloadWorkers, func(ctx context.Context, f *download.File) {
				if sourceProvider == nil {
					return
				}
				sources, err := sourceProvider.Sources(ctx, f.Hash)
				if err != nil || len(sources) == 0 {
					log.WithError(err).WithField("file", f.SaveAs).Warn("no sources found")
					return
				}
				dest := filepath.Join(downloadDir, filepath.FromSlash(f.SaveAs))
				if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
					log.WithError(err).Error("failed to create download directory")
					return
				}
				out, err := os.OpenFile(dest, os.O_CREATE|os.O_RDWR, 0o644)
				if err != nil {
					log.WithError(err).Error("failed to open download destination")
					return
				}
				defer out.Close()

				m.DownloadsActive.Inc()
				defer m.DownloadsActive.Dec()
				if err := download.FetchFile(ctx, fetcher, f, sources, liveStats, out, downloadBucket); err != nil {
					if errors.Is(err, download.ErrNoSource) {
						queue.MarkNoSources(f.DispatchID)
						m.DownloadsNoSrc.Inc()
					}
					log.WithError(err).WithField("file", f.SaveAs).Warn("download failed")
					return
				}
				m.BytesDownloaded.Add(float64(f.Size))
			})
			go scheduler.Run(ctx)

			var autoMgr *autoindexnode.Manager
			if autoIndexnodeOn {
				transport, err := autoindexnode.NewUDPBroadcast()
				if err != nil {
					log.WithError(err).Warn("auto-indexnode disabled: could not open UDP broadcast")
				} else {
					autoMgr = autoindexnode.NewManager(transport, autoIndexnodePort, func() {
						log.Info("elected active indexnode")
					}, func() {
						log.Info("relinquished active indexnode role")
					})
					go autoMgr.Run(ctx)
				}
			}

			errCh := make(chan error, 1)
			go func() { errCh <- httpSrv.ListenAndServe() }()
			log.WithField("addr", httpAddr).Info("client share server listening")

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				shareMgr.Shutdown()
				_ = queue.SaveToDisk(queuePath)
				return httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if err == http.ErrServerClosed {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "alias advertised to indexnodes")
	cmd.Flags().StringVar(&clientToken, "client-token", "", "client token advertised on /hello")
	cmd.Flags().IntVar(&port, "port", 49152, "advertised listen port (fs2-port header)")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":49152", "HTTP listen address for the share server")
	cmd.Flags().StringSliceVar(&indexnodes, "indexnode", nil, "indexnode base URL, repeatable")
	cmd.Flags().StringSliceVar(&shares, "share", nil, "name=root-path, repeatable")
	cmd.Flags().StringVar(&stateDir, "state-dir", "./state", "directory for persisted file lists and the download queue")
	cmd.Flags().StringVar(&downloadDir, "download-dir", "./downloads", "directory downloaded files are written under")
	cmd.Flags().IntVar(&uploadLimit, "upload-limit", 0, "upload bytes/sec limit, 0 disables")
	cmd.Flags().IntVar(&downloadLimit, "download-limit", 0, "download bytes/sec limit, 0 disables")
	cmd.Flags().IntVar(&downloadWorkers, "download-workers", 4, "concurrent download worker pool size")
	cmd.Flags().IntVar(&slotsPerPeer, "slots-per-peer", 3, "concurrent upload slots granted to a single peer")
	cmd.Flags().BoolVar(&autoIndexnodeOn, "autoindexnode", false, "participate in UDP auto-indexnode election")
	cmd.Flags().IntVar(&autoIndexnodePort, "autoindexnode-port", 6771, "port advertised if this client is elected active indexnode")
	return cmd
}

func avatarHash(seed string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}
