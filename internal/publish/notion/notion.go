package notion

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/jomei/notionapi"

	"github.com/openscience/digest/internal/publish"
)

// maxBlockChars keeps paragraph blocks under Notion's rich-text length limit.
const maxBlockChars = 1800

// Appender appends each digest under a rolling Notion page. It fills the
// document-append role: a secondary sink, never the primary artifact.
type Appender struct {
	client *notionapi.Client
	pageID notionapi.BlockID
}

// NewAppender creates a Notion appender targeting the given page.
func NewAppender(token, pageID string) (*Appender, error) {
	if token == "" {
		return nil, fmt.Errorf("notion token is required")
	}
	if pageID == "" {
		return nil, fmt.Errorf("notion page id is required")
	}
	return &Appender{
		client: notionapi.NewClient(notionapi.Token(token)),
		pageID: notionapi.BlockID(pageID),
	}, nil
}

// Publish appends a dated heading plus the digest body to the page.
func (a *Appender) Publish(ctx context.Context, date time.Time, body string) (publish.Artifact, error) {
	blocks := []notionapi.Block{
		&notionapi.Heading2Block{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeHeading2,
			},
			Heading2: notionapi.Heading{
				RichText: []notionapi.RichText{richText(publish.TitleFor(date))},
			},
		},
	}
	for _, chunk := range chunk(body, maxBlockChars) {
		blocks = append(blocks, &notionapi.ParagraphBlock{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeParagraph,
			},
			Paragraph: notionapi.Paragraph{
				RichText: []notionapi.RichText{richText(chunk)},
			},
		})
	}

	if _, err := a.client.Block.AppendChildren(ctx, a.pageID, &notionapi.AppendBlockChildrenRequest{
		Children: blocks,
	}); err != nil {
		return publish.Artifact{}, fmt.Errorf("appending to Notion page: %w", err)
	}
	return publish.Artifact{Kind: "notion", Location: string(a.pageID)}, nil
}

func richText(content string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: content},
	}
}

// chunk splits text into pieces below the block size limit, breaking at line
// boundaries where possible and never inside a rune.
func chunk(text string, size int) []string {
	var out []string
	for len(text) > size {
		cut := size
		for i := size; i > size/2; i-- {
			if text[i-1] == '\n' {
				cut = i
				break
			}
		}
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
