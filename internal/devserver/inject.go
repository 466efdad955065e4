package devserver

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/html"
)

// maxInjectSize bounds how much of an HTML response is buffered for injection.
const maxInjectSize = 512 * 1024

// ScriptTag is inserted into proxied HTML pages.
const ScriptTag = `<script async src="/__assetpipe/livereload.js"></script>`

// InjectScript inserts tag before the last closing body tag of doc, or appends it
// when the document has none. Tags inside comments, scripts and attribute values
// are not mistaken for the real one.
func InjectScript(doc []byte, tag string) []byte {
	at := closingBodyOffset(doc)
	out := make([]byte, 0, len(doc)+len(tag))
	if at < 0 {
		out = append(out, doc...)
		return append(out, tag...)
	}
	out = append(out, doc[:at]...)
	out = append(out, tag...)
	return append(out, doc[at:]...)
}

func closingBodyOffset(doc []byte) int {
	z := html.NewTokenizer(bytes.NewReader(doc))
	offset, at := 0, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return at
		}
		n := len(z.Raw())
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); string(name) == "body" {
				at = offset
			}
		}
		offset += n
	}
}

func isHTML(h http.Header) bool {
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && mt == "text/html"
}

// injectResponse rewrites an upstream HTML response in place. Gzip bodies are
// decoded first. Other encodings, oversized and non-HTML bodies pass through.
func injectResponse(resp *http.Response, tag string) error {
	enc := resp.Header.Get("Content-Encoding")
	if !isHTML(resp.Header) || (enc != "" && enc != "gzip") {
		return nil
	}
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return nil
	}
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified {
		return nil
	}
	if resp.ContentLength > maxInjectSize {
		return nil
	}

	raw := resp.Body
	var src io.Reader = raw
	if enc == "gzip" {
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return err
		}
		src = zr
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
	}
	body, err := io.ReadAll(io.LimitReader(src, maxInjectSize+1))
	if err != nil {
		return err
	}
	if len(body) > maxInjectSize {
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), src), raw}
		return nil
	}
	_ = raw.Close()

	out := InjectScript(body, tag)
	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	return nil
}
