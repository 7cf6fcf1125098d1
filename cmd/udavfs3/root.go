package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/udavfs3/internal/daemon"
	"github.com/marmos91/udavfs3/internal/fuseadapter"
	"github.com/marmos91/udavfs3/internal/logger"
	"github.com/marmos91/udavfs3/internal/mountopts"
	"github.com/marmos91/udavfs3/pkg/body"
	"github.com/marmos91/udavfs3/pkg/gateway"
	"github.com/marmos91/udavfs3/pkg/inodestore"
	"github.com/marmos91/udavfs3/pkg/schema"
)

var (
	mountOptionFlags []string
	foreground       bool
	pidFile          string
	logFile          string
	logLevel         string
	showVersion      bool
)

var rootCmd = &cobra.Command{
	Use:   "udavfs3 <database connection string> <mountpoint>",
	Short: "Mount a POSIX filesystem backed entirely by a relational database",
	Long: `udavfs3 mounts a FUSE filesystem whose entire persistent state — inode
table, directory structure, and file contents — lives in a Postgres-
compatible database. Multiple hosts mounting the same logical filesystem
(selected via -o fsname=<name>) see the same namespace and content.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			return nil
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	SilenceUsage: true,
	RunE:         runMount,
}

func init() {
	rootCmd.Flags().StringArrayVarP(&mountOptionFlags, "option", "o", nil, "mount option (key=value or bare key), comma-separated, repeatable")
	rootCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run in the foreground instead of daemonizing")
	rootCmd.Flags().StringVar(&pidFile, "pid-file", "", "path to PID file (default: <mountpoint>.pid)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "path to log file for daemon mode (default: <mountpoint>.log)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "V", false, "print version information and exit")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func runMount(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Printf("udavfs3 %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	connString, mountpoint := args[0], args[1]

	opts, err := mountopts.Parse(mountOptionFlags)
	if err != nil {
		return err
	}

	if pidFile == "" {
		pidFile = mountpoint + ".pid"
	}
	if logFile == "" {
		logFile = mountpoint + ".log"
	}

	if !foreground {
		foregroundArgs := append(append([]string{}, os.Args[1:]...), "--foreground")
		proc, err := daemon.Start(daemon.Options{PIDFile: pidFile, LogFile: logFile}, foregroundArgs)
		if err != nil {
			return err
		}
		fmt.Printf("udavfs3 started in background (PID %d)\n", proc.Pid)
		fmt.Printf("  PID file: %s\n", pidFile)
		fmt.Printf("  Log file: %s\n", logFile)
		return nil
	}

	cleanup, err := daemon.EnterForeground(pidFile)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := logger.Init(logger.Config{Level: logLevel, Output: filepath.Clean(logFile)}); err != nil {
		return err
	}

	return serve(connString, mountpoint, opts)
}

// serve bootstraps the store and enters the kernel bridge main loop. On a
// panic in serve's own goroutine (bootstrap, mount, or the wait for
// shutdown), it closes the storage gateway without unmounting and
// re-raises. The go-fuse server runs in the goroutine started by
// server.Serve; a panic there is not recovered here, and the go-fuse
// server itself is never closed by this path.
func serve(connString, mountpoint string, opts *mountopts.Options) (err error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw, err := gateway.Open(ctx, gateway.Config{ConnString: connString})
	if err != nil {
		return fmt.Errorf("udavfs3: connect to database: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("unhandled panic in kernel bridge main loop, closing bridge without unmounting", "panic", r)
			gw.Close()
			panic(r)
		}
	}()
	defer gw.Close()

	header, err := schema.Bootstrap(ctx, gw, opts.FSName, opts.BlockSize, opts.FSSize, uint32(os.Getuid()), uint32(os.Getgid()))
	if err != nil {
		return fmt.Errorf("udavfs3: bootstrap filesystem: %w", err)
	}

	inodes := inodestore.New(gw, header.FSID, header.BlockSize, header.Capacity)
	bodies := body.New(gw, header.FSID, header.BlockSize)
	fsys := fuseadapter.New(inodes, bodies)

	server, err := fuseadapter.Mount(fsys, mountpoint, opts)
	if err != nil {
		return fmt.Errorf("udavfs3: mount: %w", err)
	}

	go server.Serve()
	if err := server.WaitMount(); err != nil {
		return fmt.Errorf("udavfs3: wait for mount: %w", err)
	}
	logger.Info("filesystem mounted", "mountpoint", mountpoint, "fsid", header.FSID)

	sessionDone := make(chan struct{})
	go func() {
		server.Wait()
		close(sessionDone)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, unmounting")
		if err := server.Unmount(); err != nil {
			logger.Error("unmount failed", "error", err)
		}
		<-sessionDone
	case <-sessionDone:
		logger.Info("kernel bridge session ended")
	}

	return nil
}
