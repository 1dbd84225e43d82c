package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"example.com/focusforge/internal/sampler"
)

// ScreenshotQuality is the JPEG quality of captured screenshots.
const ScreenshotQuality = 50

// VisibleText returns the rendered text of the page body. When the page cannot evaluate
// scripts the serialised DOM is parsed instead.
func (h *Host) VisibleText(ctx context.Context, p sampler.Page) (string, error) {
	page, err := h.page(ctx, p)
	if err != nil {
		return "", err
	}
	res, err := page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err == nil {
		return res.Value.Str(), nil
	}

	doc, herr := page.HTML()
	if herr != nil {
		return "", fmt.Errorf("browser: read text of %s: %w", p.URL, err)
	}
	return TextFromHTML(doc)
}

// Screenshot captures the visible viewport as JPEG.
func (h *Host) Screenshot(ctx context.Context, p sampler.Page) ([]byte, error) {
	page, err := h.page(ctx, p)
	if err != nil {
		return nil, err
	}
	quality := ScreenshotQuality
	shot, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot %s: %w", p.URL, err)
	}
	return shot, nil
}

// TextFromHTML extracts the human-readable text of an HTML document, skipping scripts,
// styles and elements hidden with the hidden attribute.
func TextFromHTML(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("browser: parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
				return
			}
			for _, a := range n.Attr {
				if a.Key == "hidden" {
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String(), nil
}
