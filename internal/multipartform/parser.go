// Пакет multipartform — ручной разбор multipart/form-data тела запроса.
// Намеренно неполная реализация RFC 2046: ровно одна файловая часть,
// без вложенных multipart, без header folding и non-ASCII имён полей.
// Окружающие обработчики рассчитывают именно на такое поведение.
package multipartform

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedBody — тело не удалось разобрать: нет boundary,
// нет файловой части или отсутствуют обязательные поля.
var ErrMalformedBody = errors.New("некорректное multipart-тело")

// Обязательные текстовые поля формы загрузки файла.
var requiredFields = []string{"model", "filename", "filetype"}

// FilePart — файловая часть формы.
type FilePart struct {
	// Name — имя файла из Content-Disposition (filename="..."), может быть пустым.
	Name string
	// ContentType — Content-Type части, может быть пустым.
	ContentType string
	// Data — байты файла без изменений.
	Data []byte
}

// Form — результат разбора multipart-тела.
type Form struct {
	// Fields — текстовые поля формы по имени.
	Fields map[string]string
	// File — единственная файловая часть (name="file").
	File FilePart
}

var (
	// boundaryParamRe — параметр boundary в Content-Type заголовке.
	boundaryParamRe = regexp.MustCompile(`(?i)boundary="?([^";,\s]+)"?`)
	// boundaryRecoverRe — восстановление boundary по началу тела (--token).
	boundaryRecoverRe = regexp.MustCompile(`--+([\w-]+)`)
	// dispositionNameRe — name="..." в Content-Disposition (одинарные или двойные кавычки).
	dispositionNameRe = regexp.MustCompile(`(?i)content-disposition:[^\r\n]*[;\s]name=["']?([^"';\r\n]+)["']?`)
	// dispositionFilenameRe — filename="..." в Content-Disposition.
	dispositionFilenameRe = regexp.MustCompile(`(?i)filename=["']?([^"';\r\n]+)["']?`)
	// partContentTypeRe — Content-Type части.
	partContentTypeRe = regexp.MustCompile(`(?i)content-type:\s*([^\r\n]+)`)
)

// Parse разбирает raw multipart-тело. Boundary берётся из contentType;
// если там его нет — восстанавливается по первому килобайту тела.
func Parse(body []byte, contentType string) (*Form, error) {
	boundary := boundaryFromContentType(contentType)
	if boundary == "" {
		boundary = recoverBoundary(body)
	}
	if boundary == "" {
		return nil, fmt.Errorf("%w: boundary не найден", ErrMalformedBody)
	}
	return ParseWithBoundary(body, boundary)
}

// ParseWithBoundary разбирает тело с известным boundary.
func ParseWithBoundary(body []byte, boundary string) (*Form, error) {
	form := &Form{Fields: make(map[string]string)}
	delimiter := []byte("--" + boundary)

	hasFile := false
	for _, segment := range bytes.Split(body, delimiter) {
		trimmed := bytes.TrimSpace(segment)
		// Пустые сегменты и терминальный маркер "--"
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("--")) {
			continue
		}

		headerBlock, content, ok := splitSegment(segment)
		if !ok {
			continue
		}

		name := matchGroup(dispositionNameRe, headerBlock)
		if name == "" {
			continue
		}

		if name == "file" {
			form.File = FilePart{
				Name:        matchGroup(dispositionFilenameRe, headerBlock),
				ContentType: matchGroup(partContentTypeRe, headerBlock),
				Data:        trimTrailingNewline(content),
			}
			hasFile = true
			continue
		}

		form.Fields[name] = fieldValue(content)
	}

	if !hasFile {
		return nil, fmt.Errorf("%w: отсутствует файловая часть", ErrMalformedBody)
	}
	for _, field := range requiredFields {
		if form.Fields[field] == "" {
			return nil, fmt.Errorf("%w: отсутствует обязательное поле %q", ErrMalformedBody, field)
		}
	}

	return form, nil
}

// boundaryFromContentType извлекает boundary из заголовка Content-Type.
func boundaryFromContentType(contentType string) string {
	m := boundaryParamRe.FindStringSubmatch(contentType)
	if m == nil {
		return ""
	}
	return m[1]
}

// recoverBoundary пытается восстановить boundary по первому килобайту тела.
func recoverBoundary(body []byte) string {
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	m := boundaryRecoverRe.FindSubmatch(head)
	if m == nil {
		return ""
	}
	return string(m[1])
}

// splitSegment делит сегмент на блок заголовков и содержимое
// по первой пустой строке (CRLF или LF).
func splitSegment(segment []byte) (headers, content []byte, ok bool) {
	if idx := bytes.Index(segment, []byte("\r\n\r\n")); idx >= 0 {
		return segment[:idx], segment[idx+4:], true
	}
	if idx := bytes.Index(segment, []byte("\n\n")); idx >= 0 {
		return segment[:idx], segment[idx+2:], true
	}
	return nil, nil, false
}

// matchGroup возвращает первую группу регулярного выражения или "".
func matchGroup(re *regexp.Regexp, block []byte) string {
	m := re.FindSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(string(m[1]))
}

// trimTrailingNewline убирает один перевод строки перед следующим boundary.
// Байты самого файла не изменяются.
func trimTrailingNewline(data []byte) []byte {
	if bytes.HasSuffix(data, []byte("\r\n")) {
		return data[:len(data)-2]
	}
	if bytes.HasSuffix(data, []byte("\n")) {
		return data[:len(data)-1]
	}
	return data
}

// fieldValue нормализует значение текстового поля: убирает обрамляющие
// пробелы и остатки терминального маркера boundary.
func fieldValue(content []byte) string {
	v := strings.TrimSpace(string(content))
	v = strings.TrimSuffix(v, "--")
	return strings.TrimSpace(v)
}
