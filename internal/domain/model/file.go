package model

import "time"

// ScrapedFile — запись о загруженном файле.
// Хранится в таблице scraped_files; байты файла лежат в object store
// по ключу Filepath. Запись и blob создаются и удаляются парой.
type ScrapedFile struct {
	// ID — внутренний идентификатор (bigserial)
	ID int64 `json:"id"`
	// UserID — владелец файла (FK → users.id)
	UserID int64 `json:"userId"`
	// Model — имя модели, для которой загружен файл
	Model string `json:"model"`
	// Filename — исходное имя файла
	Filename string `json:"filename"`
	// Filepath — ключ в object store (user-{userId}/{uuid}-{filename})
	Filepath string `json:"filepath"`
	// Filetype — заявленный content type
	Filetype string `json:"filetype"`
	// UploadDate — время загрузки
	UploadDate time.Time `json:"uploadDate"`
}
