package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

const (
	documentPart = "word/document.xml"
	corePart     = "docProps/core.xml"
)

// Extractor joins the paragraphs of a WordprocessingML document with
// newlines. Legacy binary .doc files are not handled.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) SupportedFormats() []string {
	return []string{"docx"}
}

func (e *Extractor) SupportsFormat(filename string) bool {
	return domain.ExtensionOf(filename) == "docx"
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (domain.ExtractionResult, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("open docx archive: %w", err)
	}

	var meta domain.ExtractionMetadata
	var paragraphs []string
	found := false
	for _, file := range archive.File {
		if err := ctx.Err(); err != nil {
			return domain.ExtractionResult{}, err
		}
		switch file.Name {
		case documentPart:
			found = true
			paragraphs, err = readParagraphs(file)
			if err != nil {
				return domain.ExtractionResult{}, fmt.Errorf("read %s: %w", documentPart, err)
			}
		case corePart:
			// Core properties are optional; a broken part only loses title/author.
			if title, author, err := readCoreProperties(file); err == nil {
				meta.Title = title
				meta.Author = author
			}
		}
	}
	if !found {
		return domain.ExtractionResult{}, errors.New("docx archive has no " + documentPart)
	}

	meta.ParagraphCount = len(paragraphs)
	return domain.ExtractionResult{
		Text:     strings.TrimSpace(strings.Join(paragraphs, "\n")),
		Metadata: meta,
	}, nil
}

func readParagraphs(file *zip.File) ([]string, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var paragraphs []string
	var current strings.Builder
	inParagraph := false
	inText := false
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if inParagraph {
					paragraphs = append(paragraphs, current.String())
				}
				inParagraph = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}

type coreProperties struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
}

func readCoreProperties(file *zip.File) (string, string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer rc.Close()

	var props coreProperties
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(props.Title), strings.TrimSpace(props.Creator), nil
}
