package services

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type PDFParserService interface {
	ExtractTextFromBytes(data []byte) (string, error)
	ExtractTextOrPlaceholder(name string, data []byte) string
	ExtractTextWithMetaData(filePath string) (*PDFContent, error)
}

type PDFContent struct {
	Text      string
	PageCount int
	FilePath  string
}

type pdfParserService struct{}

func NewPDFParserService() PDFParserService {
	return &pdfParserService{}
}

// PDFErrorPlaceholder is written in place of the text of a PDF that could not
// be read.
func PDFErrorPlaceholder(err error) string {
	return fmt.Sprintf("[Error leyendo PDF: %v]", err)
}

func (p *pdfParserService) ExtractTextFromBytes(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "failed to open PDF")
	}

	text, _, err := readPages(r)
	return text, err
}

// ExtractTextOrPlaceholder never fails: unreadable PDFs yield the error
// placeholder inline so the rest of the request can continue.
func (p *pdfParserService) ExtractTextOrPlaceholder(name string, data []byte) string {
	text, err := p.ExtractTextFromBytes(data)
	if err != nil {
		log.WithError(err).WithField("file", name).Warn("Failed to read PDF")
		return PDFErrorPlaceholder(errors.Cause(err))
	}
	return text
}

func (p *pdfParserService) ExtractTextWithMetaData(filePath string) (*PDFContent, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, errors.Errorf("file does not exist: %s", filePath)
	}

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open PDF")
	}
	defer f.Close()

	text, pages, err := readPages(r)
	if err != nil {
		return nil, err
	}

	return &PDFContent{
		Text:      text,
		PageCount: pages,
		FilePath:  filePath,
	}, nil
}

// readPages writes each page's text followed by a newline, in page order.
// Pages without text still produce an (empty) line.
func readPages(r *pdf.Reader) (text string, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("malformed PDF: %v", rec)
		}
	}()

	var textBuilder strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if !page.V.IsNull() {
			pageText, err := page.GetPlainText(nil)
			if err != nil {
				log.WithError(err).WithField("page", pageIndex).Debug("Failed to extract page text")
			} else {
				textBuilder.WriteString(flattenPage(pageText))
			}
		}
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), totalPage, nil
}

// flattenPage keeps a page on a single line so page boundaries stay the only
// newlines in the output.
func flattenPage(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
