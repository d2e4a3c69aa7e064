package video

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageSelection Stage = "selection"
	StageDownload  Stage = "download"
	StageRender    Stage = "render"
	StageAssembly  Stage = "assembly"
	StageStorage   Stage = "storage"
)

var ErrNoValidImages = errors.New("no valid images after filtering")

// Error tags a pipeline failure with the stage it happened in.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var ve *Error
	if errors.As(err, &ve) {
		return err
	}
	return &Error{Stage: stage, Err: err}
}

// StageOf reports the stage of a pipeline error, or "" for foreign errors.
func StageOf(err error) Stage {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Stage
	}
	return ""
}
