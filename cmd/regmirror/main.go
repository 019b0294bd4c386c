// Package main implements the regmirror command-line tool: crate index
// and archive sync, toolchain channel sync, rustup-init sync, and the
// local file-serving layer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/regmirror/regmirror/internal/channel"
	"github.com/regmirror/regmirror/internal/crates"
	"github.com/regmirror/regmirror/internal/fetch"
	"github.com/regmirror/regmirror/internal/fsutil"
	"github.com/regmirror/regmirror/internal/mirrorcfg"
	"github.com/regmirror/regmirror/internal/objectstore"
	"github.com/regmirror/regmirror/internal/rustup"
	"github.com/regmirror/regmirror/internal/server"
)

var (
	workDir    string
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "regmirror",
	Short: "Mirror and serve a package-registry ecosystem",
	Long: `regmirror synchronizes a crate index, crate archives, and toolchain
channel/installer artifacts from upstream, optionally replicates them to
object storage, and serves them back to clients.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "", "root directory for all synced artifacts")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override log level (debug, info, warn, error)")

	cratesCmd.AddCommand(cratesPullCmd, cratesDownloadCmd, cratesUploadCmd)
	channelCmd.AddCommand(channelDownloadCmd, channelUploadCmd)
	rustupCmd.AddCommand(rustupDownloadCmd, rustupUploadCmd)
	rootCmd.AddCommand(cratesCmd, channelCmd, rustupCmd, serverCmd)

	cratesPullCmd.Flags().String("domain", "", "override crates.index_domain")
	cratesPullCmd.Flags().Int("threads", 0, "override crates.download_threads")
	cratesPullCmd.Flags().Bool("no-progressbar", false, "suppress the clone/pull progress bar")

	cratesDownloadCmd.Flags().Bool("init", false, "perform a full index walk instead of an incremental diff")
	cratesDownloadCmd.Flags().String("fix", "", "repair a single crate name, or all journaled failures if empty")
	cratesDownloadCmd.Flags().Bool("upload", false, "replicate downloaded archives to object storage")
	cratesDownloadCmd.Flags().String("bucket", "", "object storage bucket (required with --upload)")
	cratesDownloadCmd.Flags().Bool("delete-after-upload", false, "remove the local file once uploaded")
	cratesDownloadCmd.Flags().String("domain", "", "override crates.domain")
	cratesDownloadCmd.Flags().Int("threads", 0, "override crates.download_threads")

	cratesUploadCmd.Flags().String("bucket", "", "object storage bucket (required)")
	cratesUploadCmd.Flags().String("name", "", "upload only this crate's archives")
	_ = cratesUploadCmd.MarkFlagRequired("bucket")

	channelDownloadCmd.Flags().Bool("clean", false, "run the retention pass after syncing")
	channelDownloadCmd.Flags().String("version", "", "explicit channel selector (e.g. stable, beta-2024-01-01)")
	channelDownloadCmd.Flags().Bool("init", false, "also sync config-pinned stable versions")
	channelDownloadCmd.Flags().Bool("upload", false, "replicate manifests and components to object storage")
	channelDownloadCmd.Flags().Bool("history", false, "sync every historical beta/nightly snapshot")
	channelDownloadCmd.Flags().String("bucket", "", "object storage bucket (required with --upload)")
	channelDownloadCmd.Flags().Bool("delete-after-upload", false, "remove local files once uploaded")
	channelDownloadCmd.Flags().Int("threads", 0, "override rustup.download_threads")
	channelDownloadCmd.Flags().String("domain", "", "override rustup.domain")

	channelUploadCmd.Flags().String("bucket", "", "object storage bucket (required)")
	_ = channelUploadCmd.MarkFlagRequired("bucket")

	rustupDownloadCmd.Flags().Int("threads", 0, "override rustup.download_threads")
	rustupDownloadCmd.Flags().String("domain", "", "override rustup.domain")

	rustupUploadCmd.Flags().String("bucket", "", "object storage bucket (required)")
	_ = rustupUploadCmd.MarkFlagRequired("bucket")

	serverCmd.Flags().String("ip", "0.0.0.0", "listen address")
	serverCmd.Flags().Int("port", 8080, "listen port")
	serverCmd.Flags().String("cert-path", "", "TLS certificate path (enables HTTPS when set with --key-path)")
	serverCmd.Flags().String("key-path", "", "TLS key path")
}

var cratesCmd = &cobra.Command{Use: "crates", Short: "Sync the crate index and crate archives"}
var channelCmd = &cobra.Command{Use: "channel", Short: "Sync toolchain channel manifests and components"}
var rustupCmd = &cobra.Command{Use: "rustup", Short: "Sync rustup-init binaries"}

var cratesPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Clone or pull the crate index",
	Run:   wrapSync(runCratesPull),
}

var cratesDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download crate archives referenced by the index",
	Run:   wrapSync(runCratesDownload),
}

var cratesUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Replicate already-downloaded crate archives to object storage",
	Run:   wrapSync(runCratesUpload),
}

var channelDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download toolchain channel manifests and components",
	Run:   wrapSync(runChannelDownload),
}

var channelUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Replicate the dist directory to object storage",
	Run:   wrapSync(runChannelUpload),
}

var rustupDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the release pointer and rustup-init binaries",
	Run:   wrapSync(runRustupDownload),
}

var rustupUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Replicate the rustup directory to object storage",
	Run:   wrapSync(runRustupUpload),
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve synced artifacts over HTTP(S)",
	Run:   wrap(runServer),
}

// wrap adapts a (cmd, args) -> error handler into cobra's Run signature,
// loading configuration first and mapping any error to a non-zero exit.
func wrap(fn func(cfg *mirrorcfg.Config, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			slog.Error("configuration error", "error", err)
			os.Exit(1)
		}
		if err := fn(cfg, cmd, args); err != nil {
			slog.Error("command failed", "error", err)
			os.Exit(1)
		}
	}
}

// wrapSync is wrap plus an exclusive hold on the work directory for the
// command's duration: only one sync process may write into a given work
// directory at a time.
func wrapSync(fn func(cfg *mirrorcfg.Config, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) {
	return wrap(func(cfg *mirrorcfg.Config, cmd *cobra.Command, args []string) error {
		lock, err := fsutil.AcquireWorkDirLock(cfg.WorkDir)
		if err != nil {
			return errors.Wrap(err, "acquire work dir lock")
		}
		defer func() {
			if err := lock.Release(); err != nil {
				slog.Warn("failed to release work dir lock", "error", err)
			}
		}()
		return fn(cfg, cmd, args)
	})
}

func loadConfig() (*mirrorcfg.Config, error) {
	path := configPath
	if path == "" {
		root := workDir
		if root == "" {
			root, _ = os.Getwd()
		}
		path = mirrorcfg.DefaultPath(root)
	}
	cfg, err := mirrorcfg.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if workDir != "" {
		cfg.WorkDir = workDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Log.Apply(); err != nil {
		return nil, errors.Wrap(err, "apply log config")
	}
	if err := cfg.Check(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}

func newFetcher(cfg *mirrorcfg.Config) (*fetch.Fetcher, error) {
	proxy := ""
	if cfg.Proxy.Enable {
		proxy = cfg.Proxy.DownloadProxy
	}
	return fetch.New(proxy)
}

func newUploader(cfg *mirrorcfg.Config) (objectstore.Uploader, error) {
	switch cfg.Object.Driver {
	case "s3":
		return objectstore.NewS3Uploader(context.Background(), cfg.Object.Region, cfg.Object.Endpoint)
	default:
		u := objectstore.NewCLIUploader()
		if cfg.Object.CLICommand != "" {
			u.FileTemplate = strings.Fields(cfg.Object.CLICommand)
		}
		return u, nil
	}
}

func intFlag(cmd *cobra.Command, name string, fallback int) int {
	v, _ := cmd.Flags().GetInt(name)
	if v == 0 {
		return fallback
	}
	return v
}

func stringFlag(cmd *cobra.Command, name, fallback string) string {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return fallback
	}
	return v
}

func runCratesPull(cfg *mirrorcfg.Config, cmd *cobra.Command, _ []string) error {
	cfg.Crates.IndexDomain = stringFlag(cmd, "domain", cfg.Crates.IndexDomain)
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	syncer := crates.NewSyncer(cfg, fetcher, nil)
	return syncer.Pull(cmd.Context())
}

func runCratesDownload(cfg *mirrorcfg.Config, cmd *cobra.Command, _ []string) error {
	upload, _ := cmd.Flags().GetBool("upload")
	bucket, _ := cmd.Flags().GetString("bucket")
	if bucket != "" {
		cfg.Object.Bucket = bucket
	}
	if err := cfg.RequireBucket(upload); err != nil {
		return err
	}
	cfg.Crates.Domain = stringFlag(cmd, "domain", cfg.Crates.Domain)

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	uploader, err := newUploader(cfg)
	if err != nil {
		return err
	}
	syncer := crates.NewSyncer(cfg, fetcher, uploader)

	deleteAfter, _ := cmd.Flags().GetBool("delete-after-upload")
	opts := crates.Options{
		Threads:           intFlag(cmd, "threads", cfg.Crates.DownloadThreads),
		Upload:            upload,
		DeleteAfterUpload: deleteAfter,
	}

	fix, _ := cmd.Flags().GetString("fix")
	if fix != "" || cmd.Flags().Changed("fix") {
		return syncer.Repair(cmd.Context(), fix, opts)
	}

	init, _ := cmd.Flags().GetBool("init")
	if init {
		return syncer.Init(cmd.Context(), opts)
	}
	return syncer.Increment(cmd.Context(), opts)
}

func runCratesUpload(cfg *mirrorcfg.Config, cmd *cobra.Command, _ []string) error {
	bucket, _ := cmd.Flags().GetString("bucket")
	name, _ := cmd.Flags().GetString("name")
	uploader, err := newUploader(cfg)
	if err != nil {
		return err
	}
	if name != "" {
		return uploadSingleCrate(cmd.Context(), uploader, cfg, name, bucket)
	}
	return uploader.UploadFolder(cmd.Context(), cfg.CratesDir(), bucket)
}

func uploadSingleCrate(ctx context.Context, uploader objectstore.Uploader, cfg *mirrorcfg.Config, name, bucket string) error {
	dir := cfg.CratesDir() + "/" + name
	return uploader.UploadFolder(ctx, dir, bucket)
}

func runChannelDownload(cfg *mirrorcfg.Config, cmd *cobra.Command, _ []string) error {
	upload, _ := cmd.Flags().GetBool("upload")
	bucket, _ := cmd.Flags().GetString("bucket")
	if bucket != "" {
		cfg.Object.Bucket = bucket
	}
	if err := cfg.RequireBucket(upload); err != nil {
		return err
	}
	cfg.Rustup.Domain = stringFlag(cmd, "domain", cfg.Rustup.Domain)

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	uploader, err := newUploader(cfg)
	if err != nil {
		return err
	}
	syncer := channel.NewSyncer(cfg, fetcher, uploader)

	clean, _ := cmd.Flags().GetBool("clean")
	version, _ := cmd.Flags().GetString("version")
	initFlag, _ := cmd.Flags().GetBool("init")
	history, _ := cmd.Flags().GetBool("history")
	deleteAfter, _ := cmd.Flags().GetBool("delete-after-upload")

	opts := channel.Options{
		Selector:          version,
		History:           history,
		Init:              initFlag,
		Clean:             clean,
		Upload:            upload,
		DeleteAfterUpload: deleteAfter,
		Bucket:            cfg.Object.Bucket,
		Threads:           intFlag(cmd, "threads", cfg.Rustup.DownloadThreads),
	}
	return syncer.Run(cmd.Context(), opts)
}

func runChannelUpload(cfg *mirrorcfg.Config, cmd *cobra.Command, _ []string) error {
	bucket, _ := cmd.Flags().GetString("bucket")
	uploader, err := newUploader(cfg)
	if err != nil {
		return err
	}
	return uploader.UploadFolder(cmd.Context(), cfg.DistDir(), bucket)
}

func runRustupDownload(cfg *mirrorcfg.Config, cmd *cobra.Command, _ []string) error {
	cfg.Rustup.Domain = stringFlag(cmd, "domain", cfg.Rustup.Domain)
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	syncer := rustup.NewSyncer(cfg, fetcher, nil)
	opts := rustup.Options{Threads: intFlag(cmd, "threads", cfg.Rustup.DownloadThreads)}
	return syncer.SyncInit(cmd.Context(), opts)
}

func runRustupUpload(cfg *mirrorcfg.Config, cmd *cobra.Command, _ []string) error {
	bucket, _ := cmd.Flags().GetString("bucket")
	uploader, err := newUploader(cfg)
	if err != nil {
		return err
	}
	return uploader.UploadFolder(cmd.Context(), cfg.RustupDir(), bucket)
}

func runServer(cfg *mirrorcfg.Config, cmd *cobra.Command, _ []string) error {
	ip, _ := cmd.Flags().GetString("ip")
	port, _ := cmd.Flags().GetInt("port")
	certPath, _ := cmd.Flags().GetString("cert-path")
	keyPath, _ := cmd.Flags().GetString("key-path")

	addr := fmt.Sprintf("%s:%d", ip, port)
	srv := server.New(cfg)
	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

	slog.Info("file server listening", "addr", addr)
	if certPath != "" && keyPath != "" {
		return httpServer.ListenAndServeTLS(certPath, keyPath)
	}
	return httpServer.ListenAndServe()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
