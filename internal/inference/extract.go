package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const defaultContentType = "image/png"

// maxScanDepth bounds the recursive URL search so adversarial payloads
// cannot force unbounded traversal.
const maxScanDepth = 32

// outputKeys are the result keys that may hold the output sequence, in
// priority order.
var outputKeys = []string{"output", "outputs", "results"}

// base64Keys are the output-item keys that may hold inline image data,
// in priority order.
var base64Keys = []string{"base64", "b64"}

// Extract normalizes a job result into image bytes plus a content type.
// The provider's response shape is not fixed across models, so this is an
// ordered best-effort chain rather than a schema parse:
//
//  1. top-level "url" string — fetched over HTTP
//  2. first element of "output"/"outputs"/"results" — its "url" fetched,
//     or its "base64"/"b64"/"image" string decoded as standard base64
//     with content type image/png
//  3. first string value anywhere in the document that starts with
//     "http", in document order — fetched
//
// The result is only read, never modified. A failed fetch surfaces as a
// TransportError instead of falling through to the next strategy. When
// nothing matches, the NoImageFoundError carries the full result.
func (c *Client) Extract(ctx context.Context, result JobResult) (*Artifact, error) {
	root := gjson.ParseBytes(result)

	if u := root.Get("url"); u.Type == gjson.String && u.Str != "" {
		return c.fetchArtifact(ctx, u.Str)
	}

	if artifact, matched, err := c.extractFromOutput(ctx, root); matched {
		return artifact, err
	}

	if u := firstURL(root, 0); u != "" {
		return c.fetchArtifact(ctx, u)
	}

	return nil, &NoImageFoundError{Result: json.RawMessage(result)}
}

// extractFromOutput applies strategy 2. matched reports whether the
// first output element claimed the extraction, even if it then failed.
func (c *Client) extractFromOutput(ctx context.Context, root gjson.Result) (*Artifact, bool, error) {
	var seq gjson.Result
	for _, key := range outputKeys {
		if v := root.Get(key); v.Exists() {
			seq = v
			break
		}
	}
	if !seq.IsArray() {
		return nil, false, nil
	}
	items := seq.Array()
	if len(items) == 0 {
		return nil, false, nil
	}

	// Only the first element is inspected.
	item := items[0]
	if !item.IsObject() {
		return nil, false, nil
	}

	if u := item.Get("url"); u.Type == gjson.String && u.Str != "" {
		artifact, err := c.fetchArtifact(ctx, u.Str)
		return artifact, true, err
	}

	for _, key := range base64Keys {
		if v := item.Get(key); v.Type == gjson.String && v.Str != "" {
			artifact, err := decodeInline(key, v.Str)
			return artifact, true, err
		}
	}

	// "image" is assumed to hold base64 data, not a raw URL.
	if v := item.Get("image"); v.Type == gjson.String && v.Str != "" {
		artifact, err := decodeInline("image", v.Str)
		return artifact, true, err
	}

	return nil, false, nil
}

func decodeInline(key, data string) (*Artifact, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode %q output: %w", key, err)
	}
	return &Artifact{Bytes: decoded, ContentType: defaultContentType}, nil
}

func (c *Client) fetchArtifact(ctx context.Context, url string) (*Artifact, error) {
	data, contentType, err := c.FetchAsset(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Artifact{Bytes: data, ContentType: contentType}, nil
}

// firstURL walks the value depth-first and returns the first string that
// starts with "http". Objects are visited in document order, arrays in
// index order.
func firstURL(v gjson.Result, depth int) string {
	if depth > maxScanDepth {
		return ""
	}
	if !v.IsObject() && !v.IsArray() {
		return ""
	}

	var found string
	v.ForEach(func(_, child gjson.Result) bool {
		if child.Type == gjson.String && strings.HasPrefix(child.Str, "http") {
			found = child.Str
			return false
		}
		if found = firstURL(child, depth+1); found != "" {
			return false
		}
		return true
	})
	return found
}
