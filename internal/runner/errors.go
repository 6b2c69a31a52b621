package runner

import "errors"

var (
	// ErrStartFailed indicates the runner refused or never received the backtest
	ErrStartFailed = errors.New("failed to start backtest")

	// ErrRunnerFailed indicates the runner reported the backtest as failed
	ErrRunnerFailed = errors.New("backtest failed")

	// ErrTimeout indicates no terminal status arrived in time
	ErrTimeout = errors.New("backtest timed out")

	// ErrProcessFailed indicates the runner subprocess exited unsuccessfully
	ErrProcessFailed = errors.New("backtest process failed")

	// ErrInvalidResult indicates a terminal response without a usable result document
	ErrInvalidResult = errors.New("invalid backtest result")

	// ErrUnavailable indicates the runner health check failed
	ErrUnavailable = errors.New("backtest runner unavailable")
)
