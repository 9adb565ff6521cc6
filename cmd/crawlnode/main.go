// Command crawlnode runs a single-site crawler worker node: "serve" exposes
// it as a gRPC CrawlerNode service and registers with a coordinator;
// "test" drives the same parser locally against a small in-process request
// queue, without a coordinator (§6.3), generalizing the teacher's
// cmd/crawler/main.go flag-parsing and signal-handling style.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cametumbling/crawlnode/internal/crawlctx"
	"github.com/cametumbling/crawlnode/internal/idgen"
	"github.com/cametumbling/crawlnode/internal/logging"
	"github.com/cametumbling/crawlnode/internal/parser"
	"github.com/cametumbling/crawlnode/internal/proxyfetcher"
	"github.com/cametumbling/crawlnode/internal/rpcerr"
	"github.com/cametumbling/crawlnode/internal/siteparser/asos"
	"github.com/cametumbling/crawlnode/internal/webutil"
	"github.com/cametumbling/crawlnode/internal/workernode"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "test":
		runTest(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: crawlnode <serve|test> [flags]\n")
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listenAddr := fs.String("listen", "0.0.0.0:6000", "gRPC serve address")
	coordinatorAddr := fs.String("coordinator-addr", "", "coordinator registration address (required)")
	proxyAddr := fs.String("proxy-addr", "", "proxy fetcher address (falls back to VOILA_PROXY_URL when unset)")
	servePort := fs.Int("serve-port", 6000, "port announced to the coordinator")
	fs.Parse(args)

	if *proxyAddr == "" {
		*proxyAddr = os.Getenv("VOILA_PROXY_URL")
	}
	if *proxyAddr == "" {
		fmt.Fprintf(os.Stderr, "Error: -proxy-addr flag or VOILA_PROXY_URL env var is required\n")
		os.Exit(1)
	}
	if *coordinatorAddr == "" {
		fmt.Fprintf(os.Stderr, "Error: -coordinator-addr flag is required\n")
		os.Exit(1)
	}

	log := logging.New("crawlnode")

	fetcher, err := proxyfetcher.New(*proxyAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p := asos.New(fetcher)
	server := workernode.NewServer(p, fetcher, logging.New("workernode"))

	lis, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listening on %s: %v\n", *listenAddr, err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer()
	workernode.RegisterServer(grpcServer, server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	serveErrCh := make(chan error, 1)
	go func() {
		log.Printf("serving CrawlerNode at %s", *listenAddr)
		serveErrCh <- grpcServer.Serve(lis)
	}()

	conn, err := grpc.NewClient(*coordinatorAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error dialing coordinator %s: %v\n", *coordinatorAddr, err)
		os.Exit(1)
	}
	defer conn.Close()

	registrar := workernode.NewRegistrar(conn, p, int32(*servePort), logging.New("register"))
	go registrar.Run(ctx)

	select {
	case err := <-serveErrCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error serving: %v\n", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down gracefully...", sig)
		cancel()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
			log.Printf("shutdown complete")
		case <-time.After(5 * time.Second):
			fmt.Fprintf(os.Stderr, "shutdown timeout exceeded, forcing exit\n")
			grpcServer.Stop()
		}
	}
}

func runTest(args []string) {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	proxyAddr := fs.String("proxy-addr", "", "proxy fetcher address (falls back to VOILA_PROXY_URL when unset)")
	target := fs.String("target", "", "target url to crawl; defaults to the parser's NewTestRequest seeds")
	disableProxy := fs.Bool("disable-proxy", false, "disable proxy when fetching")
	pretty := fs.Bool("pretty", false, "pretty-print yielded items")
	fs.Parse(args)

	if *proxyAddr == "" {
		*proxyAddr = os.Getenv("VOILA_PROXY_URL")
	}
	if *proxyAddr == "" {
		fmt.Fprintf(os.Stderr, "Error: -proxy-addr flag or VOILA_PROXY_URL env var is required\n")
		os.Exit(1)
	}

	log := logging.New("crawlnode-test")

	fetcher, err := proxyfetcher.New(*proxyAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	p := asos.New(fetcher)

	ctx := context.Background()
	jobCtx := (&crawlctx.Context{}).Derive(crawlctx.TracingIDKey, idgen.NewTracingID())

	queue := make([]*webutil.Request, 0, 16)
	seen := make(map[string]bool)

	if *target != "" {
		req, err := webutil.NewRequest(jobCtx, "GET", *target, nil, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -target: %v\n", err)
			os.Exit(1)
		}
		queue = append(queue, req)
		seen[req.URL.String()] = true
	} else {
		for req := range p.NewTestRequest(ctx, jobCtx) {
			if req == nil || seen[req.URL.String()] {
				continue
			}
			queue = append(queue, req)
			seen[req.URL.String()] = true
		}
	}
	if len(queue) == 0 {
		log.Printf("no seed requests, nothing to do")
		return
	}

	for len(queue) > 0 {
		req := queue[0]
		queue = queue[1:]

		req.Context = req.Context.Derive(crawlctx.ReqIDKey, idgen.New())
		opts := p.CrawlOptions(req.URL)

		fetchOpts := proxyfetcher.RequestOptions{
			EnableProxy:       !*disableProxy,
			EnableHeadless:    opts.EnableHeadless,
			EnableSessionInit: opts.EnableSessionInit,
			KeepSession:       opts.KeepSession,
			DisableCookieJar:  opts.DisableCookieJar,
			DisableRedirect:   opts.DisableRedirect,
			Reliability:       opts.Reliability,
		}
		for k, v := range opts.Headers {
			req.Headers.Set(k, v)
		}
		if len(opts.Cookies) > 0 {
			pairs := make([][2]string, 0, len(opts.Cookies))
			for _, c := range opts.Cookies {
				if c.Path == "" || strings.HasPrefix(req.URL.Path, c.Path) {
					pairs = append(pairs, [2]string{c.Name, c.Value})
				}
			}
			if cookie := webutil.BuildCookieHeader(pairs); cookie != "" {
				req.Headers.Set("cookie", cookie)
			}
		}

		resp, err := fetcher.Do(ctx, req, fetchOpts)
		if err != nil {
			log.Printf("fetch %s failed: %v", req.URL.String(), err)
			continue
		}

		for y := range p.Parse(ctx, req.Context, resp) {
			switch {
			case y.Request != nil:
				child := y.Request
				if child.URL.Scheme == "" {
					child.URL.Scheme = "https"
				}
				if child.URL.Host == "" {
					child.URL.Host = req.URL.Host
				}
				key := child.URL.String()
				if seen[key] {
					continue
				}
				seen[key] = true
				queue = append(queue, child)
			case y.Err != nil:
				log.Printf("got message error: %v", rpcerr.AsError(y.Err))
			case y.Item != nil:
				printItem(y.Item, *pretty)
			default:
				log.Printf("got invalid yield")
			}
		}
	}
}

func printItem(item any, pretty bool) {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(item, "", "  ")
	} else {
		data, err = json.Marshal(item)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling item: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

var _ parser.Parser = (*asos.Parser)(nil)
