package thread

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"varulv/internal/domain"
)

// postIDPrefix is stripped from article ids to get the post ID
const postIDPrefix = "js-post-"

// ExtractPosts reads the post records of one thread page. Quoted replies are
// removed from each body before it is returned.
func ExtractPosts(r io.Reader) ([]domain.PostRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return extractPosts(doc), nil
}

func extractPosts(doc *goquery.Document) []domain.PostRecord {
	posts := make([]domain.PostRecord, 0)
	doc.Find("article[data-author]").Each(func(_ int, article *goquery.Selection) {
		author, _ := article.Attr("data-author")
		id, _ := article.Attr("id")
		datetime, _ := article.Find("time").First().Attr("datetime")

		article.Find("blockquote").Remove()

		body := ""
		if content := article.Find(".message-content").First(); content.Length() > 0 {
			body, _ = content.Html()
		}

		posts = append(posts, domain.PostRecord{
			AuthorID:      author,
			PostID:        strings.TrimPrefix(id, postIDPrefix),
			TimestampText: datetime,
			Body:          body,
		})
	})
	return posts
}

// pageTitle returns the trimmed <title> of a page
func pageTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// titlePrefixes are forum section prefixes removed from thread names
var titlePrefixes = []string{"Nekromanti - ", "Varulv - "}

// titleSuffix is the site name appended to every page title
const titleSuffix = "| rollspel.nu"

// CleanTitle turns a page <title> into a thread display name
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, prefix := range titlePrefixes {
		title = strings.TrimPrefix(title, prefix)
	}
	if strings.Contains(title, titleSuffix) {
		title = strings.TrimSpace(strings.ReplaceAll(title, titleSuffix, ""))
	}
	return title
}

// VerifyPageTitle checks that a page's title matches its page number:
// page 1 carries no "| Page N |" segment and page N > 1 carries "| Page N |".
func VerifyPageTitle(title string, page int) error {
	if title == "" {
		return fmt.Errorf("page %d has no title", page)
	}
	if page == 1 {
		if pageSegment.MatchString(title) {
			return fmt.Errorf("page 1 title has a page segment: %q", title)
		}
		return nil
	}
	expected := fmt.Sprintf("| Page %d |", page)
	if !strings.Contains(title, expected) {
		return fmt.Errorf("page %d title lacks %q: %q", page, expected, title)
	}
	return nil
}
