package cli

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"

	"github.com/inkwell-ai/inkwell/internal/frame"
	"github.com/inkwell-ai/inkwell/internal/interpreter"
	"github.com/inkwell-ai/inkwell/internal/rpc"
	chatrpc "github.com/inkwell-ai/inkwell/internal/rpc/chat"
	"github.com/inkwell-ai/inkwell/internal/rpc/connectjson"
)

// NewChatCmd wires the chat command to stream one conversation turn from the
// daemon and render it through the client interpreter.
func NewChatCmd(opts *Options) *cobra.Command {
	var conversationID string
	var modelOverride string
	var visibility string

	cmd := &cobra.Command{
		Use:   "chat \"<message>\"",
		Short: "Send a message to the daemon and stream the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			message := args[0]
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("message cannot be empty")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			reqBody := rpc.ChatRequest{
				ConversationID: conversationID,
				Message:        message,
				ModelID:        modelOverride,
				Visibility:     visibility,
			}

			baseURL := daemonURL(cfg.Server.Addr)
			switch strings.ToLower(strings.TrimSpace(cfg.Server.Transport)) {
			case "ndjson":
				return chatNDJSON(ctx, cmd, baseURL+"/chat", reqBody)
			default:
				return chatConnect(ctx, cmd, baseURL+chatrpc.ConnectChatProcedure, reqBody)
			}
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation id to continue (optional)")
	cmd.Flags().StringVar(&modelOverride, "model", "", "Override model id for this turn")
	cmd.Flags().StringVar(&visibility, "visibility", "private", "Response visibility (private or public)")
	return cmd
}

func daemonURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func chatNDJSON(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.ChatRequest) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return fmt.Errorf("daemon rejected credentials")
	case http.StatusServiceUnavailable:
		return fmt.Errorf("model dependency degraded, try again later")
	default:
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	interp := interpreter.New(nil)
	interp.OnFrame = func(f frame.Frame) { renderFrame(cmd, f) }
	if err := interp.ReadStream(resp.Body); err != nil {
		return err
	}
	renderArtifact(cmd, interp.Artifact())
	return nil
}

func chatConnect(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.ChatRequest) error {
	client := connect.NewClient[rpc.ChatStreamRequest, frame.Frame](buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))
	stream := client.CallBidiStream(ctx)

	if err := stream.Send(&rpc.ChatStreamRequest{Chat: &reqBody}); err != nil {
		return err
	}

	// propagate cancellation to the daemon.
	go func() {
		<-ctx.Done()
		_ = stream.Send(&rpc.ChatStreamRequest{Cancel: true})
		_ = stream.CloseRequest()
	}()

	interp := interpreter.New(nil)
	interp.OnFrame = func(f frame.Frame) { renderFrame(cmd, f) }

	for {
		f, err := stream.Receive()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		interp.Apply(frame.Normalize(*f))
	}
	_ = stream.CloseRequest()
	if err := stream.CloseResponse(); err != nil {
		return err
	}
	renderArtifact(cmd, interp.Artifact())
	return nil
}

func renderFrame(cmd *cobra.Command, f frame.Frame) {
	out := cmd.OutOrStdout()
	switch f.Type {
	case frame.TypeToolStart:
		name, _ := f.Data["toolName"].(string)
		fmt.Fprintf(out, "\n[tool %s]\n", name)
	case frame.TypeToolError:
		name, _ := f.Data["toolName"].(string)
		reason, _ := f.Data["error"].(string)
		fmt.Fprintf(out, "\n[tool %s failed: %s]\n", name, reason)
	case frame.TypeTitle:
		fmt.Fprintf(out, "[artifact: %s]\n", f.Text())
	case frame.TypeModelRouting:
		model, _ := f.Data["model"].(string)
		provider, _ := f.Data["provider"].(string)
		fmt.Fprintf(out, "[model %s via %s]\n", model, provider)
	case frame.TypeFinish:
		fmt.Fprintln(out)
	default:
		if f.IsContentBearing() {
			fmt.Fprint(out, f.Text())
		}
	}
}

func renderArtifact(cmd *cobra.Command, a interpreter.Artifact) {
	if !a.Visible || a.DocumentID == "" {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[document %s %q: %d bytes, %s]\n", a.DocumentID, a.Title, len(a.Content), a.Status)
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
