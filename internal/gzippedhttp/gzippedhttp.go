// Package gzippedhttp holds the gzip middlewares: request bodies sent with
// Content-Encoding gzip are inflated, and textual responses are compressed
// for clients that accept it.
package gzippedhttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var compressibleTypes = []string{
	"application/json",
	"text/html",
	"text/css",
	"text/plain",
}

var gzipWriterPool = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

type inflatingBody struct {
	body io.ReadCloser
	zr   *gzip.Reader
}

func (b *inflatingBody) Read(p []byte) (int, error) {
	return b.zr.Read(p)
}

func (b *inflatingBody) Close() error {
	if err := b.zr.Close(); err != nil {
		_ = b.body.Close()
		return err
	}
	return b.body.Close()
}

// compressingWriter decides at WriteHeader time whether the body gets
// compressed, based on the content type set by the handler.
type compressingWriter struct {
	http.ResponseWriter
	zw          *gzip.Writer
	wroteHeader bool
}

func compressible(contentType string) bool {
	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

func (c *compressingWriter) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true

	header := c.ResponseWriter.Header()
	if statusCode != http.StatusNoContent && statusCode != http.StatusNotModified && compressible(header.Get("Content-Type")) {
		zw := gzipWriterPool.Get().(*gzip.Writer)
		zw.Reset(c.ResponseWriter)
		c.zw = zw
		header.Set("Content-Encoding", "gzip")
		header.Del("Content-Length")
		header.Add("Vary", "Accept-Encoding")
	}

	c.ResponseWriter.WriteHeader(statusCode)
}

func (c *compressingWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		if c.ResponseWriter.Header().Get("Content-Type") == "" {
			c.ResponseWriter.Header().Set("Content-Type", http.DetectContentType(p))
		}
		c.WriteHeader(http.StatusOK)
	}
	if c.zw == nil {
		return c.ResponseWriter.Write(p)
	}
	return c.zw.Write(p)
}

func (c *compressingWriter) close() error {
	if c.zw == nil {
		return nil
	}
	err := c.zw.Close()
	gzipWriterPool.Put(c.zw)
	c.zw = nil
	return err
}

// GzipResponse compresses textual responses for clients that send
// Accept-Encoding: gzip.
func GzipResponse(h http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		if !strings.Contains(request.Header.Get("Accept-Encoding"), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		writer := &compressingWriter{ResponseWriter: response}
		defer writer.close()

		h.ServeHTTP(writer, request)
	})
}

// UngzipRequest inflates gzip encoded request bodies. A body that is not
// valid gzip is rejected with 400.
func UngzipRequest(h http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		if !strings.Contains(request.Header.Get("Content-Encoding"), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		zr, err := gzip.NewReader(request.Body)
		if err != nil {
			response.WriteHeader(http.StatusBadRequest)
			return
		}
		body := &inflatingBody{body: request.Body, zr: zr}
		defer body.Close()

		request.Body = body
		request.Header.Del("Content-Encoding")
		request.ContentLength = -1

		h.ServeHTTP(response, request)
	})
}
