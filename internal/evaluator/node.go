package evaluator

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jnfrati/replq/internal/logger"
	"github.com/jnfrati/replq/internal/models"
)

const (
	defaultNodeBinary     = "node"
	defaultScriptFileName = "script.js"
)

// The generated session script: imports at top level, then an async IIFE
// that runs the before snippets, evals every chunk written to stdin until
// stdin closes, then runs the after snippets in reverse order.
const replCode = `for await (const chunk of process.stdin) {
    eval(chunk.toString());
  }`

// nodeEvaluator owns a node subprocess running the generated session
// script out of a throwaway directory. Each Evaluate writes one framed
// snippet to the child's stdin and reads stdout until the session's EOF
// marker comes back.
type nodeEvaluator struct {
	dir string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	// eof delimits one evaluation's output on the child's stdout. Random
	// per session so evaluated code can't collide with it by accident.
	eof []byte

	mux sync.Mutex
}

func newNodeEvaluator(manifest *models.SessionManifestV1) (*nodeEvaluator, error) {
	if manifest == nil {
		manifest = &models.SessionManifestV1{Version: models.SessionManifestVersion_v1}
	}

	nodeBinary := manifest.NodeBinary
	if nodeBinary == "" {
		nodeBinary = defaultNodeBinary
	}
	scriptFileName := manifest.ScriptFileName
	if scriptFileName == "" {
		scriptFileName = defaultScriptFileName
	}

	dir, err := os.MkdirTemp("", "replq-session-*")
	if err != nil {
		return nil, errors.Wrap(err, "couldn't create session dir")
	}

	scriptPath := filepath.Join(dir, scriptFileName)
	if err := os.WriteFile(scriptPath, []byte(BuildScript(manifest)), 0644); err != nil {
		os.RemoveAll(dir)
		return nil, errors.Wrap(err, "couldn't write session script")
	}

	for _, src := range manifest.CopyDirs {
		dst := filepath.Join(dir, filepath.Base(src))
		if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
			os.RemoveAll(dir)
			return nil, errors.Wrapf(err, "couldn't copy dir [%s] into [%s]", src, dir)
		}
	}

	cmd := exec.Command(nodeBinary, scriptPath)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	if manifest.NodeModules != "" {
		cmd.Env = append(cmd.Env, "NODE_PATH="+manifest.NodeModules)
	}
	cmd.Stderr = logger.Global.With().Str("stream", "node.stderr").Logger()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		os.RemoveAll(dir)
		return nil, errors.Wrapf(err, "couldn't start [%s %s]", nodeBinary, scriptPath)
	}

	return &nodeEvaluator{
		dir:    dir,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		eof:    []byte(uuid.NewString()),
	}, nil
}

// BuildScript renders the session script for a manifest.
func BuildScript(manifest *models.SessionManifestV1) string {
	after := make([]string, len(manifest.After))
	for i, s := range manifest.After {
		after[len(after)-1-i] = s
	}

	return fmt.Sprintf(`%s
(async () => {
%s
  %s
%s
})();`,
		strings.Join(manifest.Imports, ";\n"),
		strings.Join(manifest.Before, ";\n"),
		replCode,
		strings.Join(after, ";\n"),
	)
}

// Frame wraps one snippet so the child prints the EOF marker once the
// snippet has run.
func Frame(code string, eof []byte) []byte {
	var b bytes.Buffer
	b.WriteString(";(async () => {\n")
	b.WriteString(code)
	b.WriteString("; process.stdout.write('")
	b.Write(eof)
	b.WriteString("');})();")
	return b.Bytes()
}

// Evaluate runs code in the session and returns everything it wrote to
// stdout. Calls are serialized; a snippet that never yields output blocks
// until the session dies (liveness is the caller's problem, matching the
// queue's own contract).
func (ne *nodeEvaluator) Evaluate(ctx context.Context, code string) ([]byte, error) {
	ne.mux.Lock()
	defer ne.mux.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := ne.stdin.Write(Frame(code, ne.eof)); err != nil {
		return nil, errors.Wrap(err, "couldn't write to session stdin")
	}

	return readUntilMarker(ne.stdout, ne.eof)
}

// Stop closes the session's stdin, which ends the script's read-eval loop
// and lets the after snippets run, then reaps the child and removes the
// session dir.
func (ne *nodeEvaluator) Stop(ctx context.Context) error {
	ne.mux.Lock()
	defer ne.mux.Unlock()

	if err := ne.stdin.Close(); err != nil {
		return err
	}

	waited := make(chan error, 1)
	go func() { waited <- ne.cmd.Wait() }()

	select {
	case err := <-waited:
		os.RemoveAll(ne.dir)
		return err
	case <-ctx.Done():
		ne.cmd.Process.Kill()
		<-waited
		os.RemoveAll(ne.dir)
		return ctx.Err()
	}
}

// readUntilMarker accumulates bytes until the buffer ends with the marker,
// then returns the buffer with the marker stripped.
func readUntilMarker(r *bufio.Reader, marker []byte) ([]byte, error) {
	var buff []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return buff, err
		}
		buff = append(buff, b)
		if bytes.HasSuffix(buff, marker) {
			return buff[:len(buff)-len(marker)], nil
		}
	}
}
