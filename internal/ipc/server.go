package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"redub/internal/daemon"
	"redub/internal/jobs"
	"redub/internal/logging"
	"redub/internal/logs"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Redub", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func fromJob(job *jobs.Job) JobItem {
	return JobItem{
		ID:             job.ID,
		CorrelationID:  job.CorrelationID,
		SourcePath:     job.SourcePath,
		OutputPath:     job.OutputPath,
		SourceLanguage: job.SourceLanguage,
		TargetLanguage: job.TargetLanguage,
		Status:         string(job.Status),
		ErrorMessage:   job.ErrorMessage,
		FailedSegments: append([]int(nil), job.FailedSegments...),
		SegmentCount:   job.SegmentCount,
		SpeakerCount:   job.SpeakerCount,
		DurationMS:     job.DurationMS,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.Pong = true
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.UptimeSeconds = status.UptimeSeconds
	resp.LockPath = status.LockFilePath
	resp.JobDBPath = status.JobDBPath
	resp.PushBind = status.PushBind
	resp.PubBind = status.PubBind
	resp.TTSState = status.TTSState
	resp.TTSBackend = status.TTSBackend
	resp.Subscribers = status.Subscribers
	resp.JobStats = status.JobStats
	return nil
}

func (s *service) JobsList(req JobsListRequest, resp *JobsListResponse) error {
	statuses := make([]jobs.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		status := jobs.Status(raw)
		if !jobs.ValidStatus(status) {
			return fmt.Errorf("unknown job status %q", raw)
		}
		statuses = append(statuses, status)
	}
	items, err := s.daemon.ListJobs(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Items = make([]JobItem, 0, len(items))
	for _, job := range items {
		if job == nil {
			continue
		}
		resp.Items = append(resp.Items, fromJob(job))
	}
	return nil
}

// maxLogWait caps follow-mode holds so a stuck client cannot pin a
// server goroutine indefinitely.
const maxLogWait = 30 * time.Second

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	wait := time.Duration(req.WaitMS) * time.Millisecond
	if wait > maxLogWait {
		wait = maxLogWait
	}
	result, err := s.daemon.TailLogs(s.ctx, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) JobDescribe(req JobDescribeRequest, resp *JobDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid job id %d", req.ID)
	}
	job, err := s.daemon.GetJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Item = fromJob(job)
	return nil
}
