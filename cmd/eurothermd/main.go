// Command eurothermd is the supervisory daemon: it loads a device
// configuration, brings up the acquisition layer on demand, and serves the
// Eurotherm RPC service until signalled to stop.
//
// Grounded on the teacher's cmd/server/main.go (flag-based config path,
// signal.NotifyContext shutdown, error channel select), generalised from a
// Modbus TCP/RTU register simulator into the supervisory service's own
// listen-and-serve loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"google.golang.org/grpc"

	"eurotherm-supervisor/internal/config"
	"eurotherm-supervisor/internal/datalog"
	"eurotherm-supervisor/internal/iomanager"
	"eurotherm-supervisor/internal/rpc"
)

func main() {
	// An interactive terminal gets a short time-only prefix; redirected to a
	// file or log collector, full date+microsecond precision is more useful
	// for correlating with other services' logs.
	if isatty.IsTerminal(os.Stdout.Fd()) {
		log.SetFlags(log.Ltime)
	} else {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	var configPath string
	var storeDB string
	flag.StringVar(&configPath, "config", "config.yaml", "path to the YAML device configuration")
	flag.StringVar(&storeDB, "store-db", "", "optional sqlite path to persist every published process value")
	flag.Parse()

	if err := run(configPath, storeDB); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, storeDB string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := iomanager.New(cfg.Devices)
	defer mgr.Stop()

	log.Printf("loaded %s device(s) from %s", humanize.Comma(int64(len(cfg.Devices))), configPath)

	if storeDB != "" {
		if err := attachDataLogger(ctx, mgr, storeDB); err != nil {
			return fmt.Errorf("attach data logger: %w", err)
		}
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.ServerIP, cfg.ServerPort))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	grpcServer := grpc.NewServer(rpc.ServerOption())

	// GracefulStop waits for every in-flight RPC to return, but an active
	// StreamProcessValues/StartTemperatureRamp call only returns once its
	// FanOut subscription or ramp is torn down — which is exactly what
	// mgr.Stop does. Call it first so GracefulStop never blocks on a stream
	// that nothing is unblocking.
	shutdown := func() {
		mgr.Stop()
		grpcServer.GracefulStop()
	}
	rpc.RegisterEurothermServer(grpcServer, rpc.NewServer(mgr, shutdown))

	errCh := make(chan error, 1)
	go func() {
		log.Printf("eurothermd listening on %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		log.Println("shutting down eurothermd")
		shutdown()
		return nil
	case err := <-errCh:
		return err
	}
}

// attachDataLogger starts the IOManager eagerly so a subscription exists
// from process start, and runs the sqlite logger against it in the
// background for the life of the process.
func attachDataLogger(ctx context.Context, mgr *iomanager.IOManager, path string) error {
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	logger, err := datalog.Open(path)
	if err != nil {
		return err
	}
	ch, _, err := mgr.Subscribe()
	if err != nil {
		logger.Close()
		return err
	}
	go func() {
		defer logger.Close()
		if err := logger.Run(ctx, ch); err != nil {
			log.Printf("data logger stopped: %v", err)
		}
	}()
	return nil
}
