package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/iMan-sources/crawl-repo-final/internal/fetcher"
	"github.com/iMan-sources/crawl-repo-final/internal/model"
)

var rankPattern = regexp.MustCompile(`^(\d+)\.`)

// GitstarExtractor parse các dòng repository từ HTML của trang ranking.
// Trang ngoài phạm vi trả về 200 với danh sách rỗng, nên kết quả rỗng ở đây
// cũng chính là tín hiệu not-exists cho page locator.
type GitstarExtractor struct {
	BaseUrl string
}

func NewGitstarExtractor(baseUrl string) *GitstarExtractor {
	return &GitstarExtractor{BaseUrl: baseUrl}
}

func (e *GitstarExtractor) Extract(target fetcher.Target, payload []byte) ([]model.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse ranking page %s: %w", target.ID, err)
	}

	var records []model.Record
	doc.Find(".list-group-item.paginated_item").Each(func(i int, item *goquery.Selection) {
		if repo, ok := e.parseItem(item); ok {
			records = append(records, repo)
		}
	})

	return records, nil
}

func (e *GitstarExtractor) parseItem(item *goquery.Selection) (model.RepoMessage, bool) {
	// Rank nằm ở text node đầu tiên trong span .name, dạng "123."
	nameSpan := item.Find(".name").First()
	if nameSpan.Length() == 0 {
		return model.RepoMessage{}, false
	}

	rankMatch := rankPattern.FindStringSubmatch(strings.TrimSpace(nameSpan.Text()))
	if rankMatch == nil {
		return model.RepoMessage{}, false
	}
	rank, _ := strconv.Atoi(rankMatch[1])

	// Đường dẫn repo dạng /user/repo: item thường chính là thẻ <a>, nhưng
	// vẫn fallback sang anchor con cho markup cũ
	href, exists := item.Attr("href")
	if !exists {
		href, exists = item.Find("a").First().Attr("href")
	}
	if !exists {
		return model.RepoMessage{}, false
	}
	fullName, user, name := e.splitRepoPath(href)
	if fullName == "" {
		return model.RepoMessage{}, false
	}

	// Số sao, bỏ dấu phân cách nghìn
	stars := 0
	if starsText := item.Find(".stargazers_count").Last().Text(); starsText != "" {
		stars, _ = strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(starsText), ",", ""))
	}

	description := ""
	if desc := item.Find(".repo-description").First(); desc.Length() > 0 {
		if title, ok := desc.Attr("title"); ok && title != "" {
			description = title
		} else {
			description = strings.TrimSpace(desc.Text())
		}
	}

	language := strings.TrimSpace(item.Find(".repo-language span").First().Text())

	avatarUrl := ""
	if src, ok := item.Find("img.avatar_image_big").First().Attr("src"); ok {
		avatarUrl = src
	} else if src, ok := item.Find("img").First().Attr("src"); ok {
		avatarUrl = src
	}

	return model.RepoMessage{
		Rank:        rank,
		User:        user,
		Name:        name,
		FullName:    fullName,
		Stars:       stars,
		Description: description,
		Language:    language,
		AvatarUrl:   avatarUrl,
		RepoUrl:     e.resolveUrl(href),
	}, true
}

// splitRepoPath tách /user/repo thành (full_name, user, name)
func (e *GitstarExtractor) splitRepoPath(href string) (string, string, string) {
	path := strings.Trim(href, "/")
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		path = strings.Trim(u.Path, "/")
	}

	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ""
	}
	return parts[0] + "/" + parts[1], parts[0], parts[1]
}

func (e *GitstarExtractor) resolveUrl(href string) string {
	base, err := url.Parse(e.BaseUrl)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
