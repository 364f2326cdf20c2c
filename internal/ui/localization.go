package ui

import "sort"

// Localization manages UI text translations
type Localization struct {
	currentLanguage string
	texts           map[string]map[string]string
}

// Text keys for localization
const (
	KeyAppTitle           = "app_title"
	KeyDownload           = "download"
	KeyCancel             = "cancel"
	KeyStop               = "stop"
	KeyOpen               = "open"
	KeyReveal             = "reveal"
	KeyCopyPath           = "copy_path"
	KeyRemove             = "remove"
	KeySettings           = "settings"
	KeyFile               = "file"
	KeyLanguage           = "language"
	KeyQuality            = "quality"
	KeyOutputFolder       = "output_folder"
	KeyBrowse             = "browse"
	KeyEnterURL           = "enter_url"
	KeyMaxParallel        = "max_parallel"
	KeyDefaultQuality     = "default_quality"
	KeyCookieBrowser      = "cookie_browser"
	KeyAutoReveal         = "auto_reveal"
	KeySave               = "save"
	KeyClose              = "close"
	KeySettingsSaved      = "settings_saved"
	KeyReady              = "ready"
	KeyCheckingSystem     = "checking_system"
	KeyPreflightFailed    = "preflight_failed"
	KeyDownloading        = "downloading"
	KeyRetrying           = "retrying"
	KeyDownloadCompleted  = "download_completed"
	KeyDownloadFailed     = "download_failed"
	KeyDownloadCancelled  = "download_cancelled"
	KeyOpenFolder         = "open_folder"
	KeyInvalidURL         = "invalid_url"
	KeyPlaylistDetected   = "playlist_detected"
	KeyPlaylistQuestion   = "playlist_question"
	KeyPlaylistCompleted  = "playlist_completed"
	KeyPlaylistSummary    = "playlist_summary"
	KeyDiagnostics        = "diagnostics"
	KeyClear              = "clear"
	KeyExportLogs         = "export_logs"
	KeyLogsExported       = "logs_exported"
	KeyNothingToExport    = "nothing_to_export"
	KeyErrorOpeningFile   = "error_opening_file"
	KeyPathCopied         = "path_copied"
	KeyTasks              = "tasks"
	KeyErrorStoppingTask  = "error_stopping_task"
	KeyErrorRemovingTask  = "error_removing_task"
	KeyAlreadyDownloading = "already_downloading"
)

// NewLocalization creates a new localization manager
func NewLocalization() *Localization {
	l := &Localization{
		currentLanguage: "en",
		texts:           make(map[string]map[string]string),
	}

	l.initializeTexts()
	return l
}

// SetLanguage sets the current language
func (l *Localization) SetLanguage(lang string) {
	if lang == "system" {
		lang = "en"
	}

	if _, exists := l.texts[lang]; exists {
		l.currentLanguage = lang
	}
}

// GetText returns localized text for the given key
func (l *Localization) GetText(key string) string {
	if texts, exists := l.texts[l.currentLanguage]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	// Fallback to English
	if text, found := l.texts["en"][key]; found {
		return text
	}

	return key
}

// GetCurrentLanguage returns the current language code
func (l *Localization) GetCurrentLanguage() string {
	return l.currentLanguage
}

// GetAvailableLanguages returns map of available languages with their display names
func (l *Localization) GetAvailableLanguages() map[string]string {
	return map[string]string{
		"en": "English",
		"ru": "Русский",
		"pt": "Português",
	}
}

// languageCodes returns the language codes in a stable order for menus
func (l *Localization) languageCodes() []string {
	codes := make([]string, 0, len(l.texts))
	for code := range l.texts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (l *Localization) initializeTexts() {
	l.texts["en"] = map[string]string{
		KeyAppTitle:           "Video Downloader",
		KeyDownload:           "Download",
		KeyCancel:             "Cancel",
		KeyStop:               "Stop",
		KeyOpen:               "Open",
		KeyReveal:             "Show",
		KeyCopyPath:           "Path",
		KeyRemove:             "Remove",
		KeySettings:           "Settings",
		KeyFile:               "File",
		KeyLanguage:           "Language",
		KeyQuality:            "Quality",
		KeyOutputFolder:       "Save to",
		KeyBrowse:             "Browse",
		KeyEnterURL:           "Paste a video or playlist URL (https://youtube.com/watch?v=...)",
		KeyMaxParallel:        "Max parallel downloads",
		KeyDefaultQuality:     "Default quality",
		KeyCookieBrowser:      "Cookies from browser",
		KeyAutoReveal:         "Open folder when a download completes",
		KeySave:               "Save",
		KeyClose:              "Close",
		KeySettingsSaved:      "Settings saved",
		KeyReady:              "Ready",
		KeyCheckingSystem:     "Checking connection and disk space...",
		KeyPreflightFailed:    "System check failed",
		KeyDownloading:        "Downloading",
		KeyRetrying:           "Retrying",
		KeyDownloadCompleted:  "Download completed",
		KeyDownloadFailed:     "Download failed",
		KeyDownloadCancelled:  "Download cancelled",
		KeyOpenFolder:         "Open folder",
		KeyInvalidURL:         "Invalid URL",
		KeyPlaylistDetected:   "Playlist detected",
		KeyPlaylistQuestion:   "This URL belongs to a playlist. Download the whole playlist?",
		KeyPlaylistCompleted:  "Playlist finished",
		KeyPlaylistSummary:    "%d of %d downloaded, %d failed, %d skipped",
		KeyDiagnostics:        "Diagnostics",
		KeyClear:              "Clear",
		KeyExportLogs:         "Export Logs",
		KeyLogsExported:       "Logs saved to",
		KeyNothingToExport:    "There are no log entries to export",
		KeyErrorOpeningFile:   "Error opening file",
		KeyPathCopied:         "Path copied to clipboard",
		KeyTasks:              "Downloads",
		KeyErrorStoppingTask:  "Error stopping task",
		KeyErrorRemovingTask:  "Error removing task",
		KeyAlreadyDownloading: "A download is already running",
	}

	l.texts["ru"] = map[string]string{
		KeyAppTitle:           "Загрузчик видео",
		KeyDownload:           "Скачать",
		KeyCancel:             "Отмена",
		KeyStop:               "Стоп",
		KeyOpen:               "Открыть",
		KeyReveal:             "Показать",
		KeyCopyPath:           "Путь",
		KeyRemove:             "Удалить",
		KeySettings:           "Настройки",
		KeyFile:               "Файл",
		KeyLanguage:           "Язык",
		KeyQuality:            "Качество",
		KeyOutputFolder:       "Сохранять в",
		KeyBrowse:             "Обзор",
		KeyEnterURL:           "Вставьте URL видео или плейлиста (https://youtube.com/watch?v=...)",
		KeyMaxParallel:        "Макс. параллельных загрузок",
		KeyDefaultQuality:     "Качество по умолчанию",
		KeyCookieBrowser:      "Cookies из браузера",
		KeyAutoReveal:         "Открывать папку после загрузки",
		KeySave:               "Сохранить",
		KeyClose:              "Закрыть",
		KeySettingsSaved:      "Настройки сохранены",
		KeyReady:              "Готово к работе",
		KeyCheckingSystem:     "Проверка соединения и места на диске...",
		KeyPreflightFailed:    "Проверка системы не пройдена",
		KeyDownloading:        "Загрузка",
		KeyRetrying:           "Повтор",
		KeyDownloadCompleted:  "Загрузка завершена",
		KeyDownloadFailed:     "Ошибка загрузки",
		KeyDownloadCancelled:  "Загрузка отменена",
		KeyOpenFolder:         "Открыть папку",
		KeyInvalidURL:         "Неверный URL",
		KeyPlaylistDetected:   "Обнаружен плейлист",
		KeyPlaylistQuestion:   "Этот URL относится к плейлисту. Скачать весь плейлист?",
		KeyPlaylistCompleted:  "Плейлист обработан",
		KeyPlaylistSummary:    "Скачано %d из %d, ошибок %d, пропущено %d",
		KeyDiagnostics:        "Диагностика",
		KeyClear:              "Очистить",
		KeyExportLogs:         "Экспорт логов",
		KeyLogsExported:       "Логи сохранены в",
		KeyNothingToExport:    "Нет записей для экспорта",
		KeyErrorOpeningFile:   "Ошибка открытия файла",
		KeyPathCopied:         "Путь скопирован",
		KeyTasks:              "Загрузки",
		KeyErrorStoppingTask:  "Ошибка остановки задачи",
		KeyErrorRemovingTask:  "Ошибка удаления задачи",
		KeyAlreadyDownloading: "Загрузка уже идёт",
	}

	l.texts["pt"] = map[string]string{
		KeyAppTitle:           "Video Downloader",
		KeyDownload:           "Baixar",
		KeyCancel:             "Cancelar",
		KeyStop:               "Parar",
		KeyOpen:               "Abrir",
		KeyReveal:             "Mostrar",
		KeyCopyPath:           "Caminho",
		KeyRemove:             "Remover",
		KeySettings:           "Configurações",
		KeyFile:               "Arquivo",
		KeyLanguage:           "Idioma",
		KeyQuality:            "Qualidade",
		KeyOutputFolder:       "Salvar em",
		KeyBrowse:             "Navegar",
		KeyEnterURL:           "Cole a URL de um vídeo ou playlist (https://youtube.com/watch?v=...)",
		KeyMaxParallel:        "Máx. downloads paralelos",
		KeyDefaultQuality:     "Qualidade padrão",
		KeyCookieBrowser:      "Cookies do navegador",
		KeyAutoReveal:         "Abrir a pasta ao concluir",
		KeySave:               "Salvar",
		KeyClose:              "Fechar",
		KeySettingsSaved:      "Configurações salvas",
		KeyReady:              "Pronto",
		KeyCheckingSystem:     "Verificando conexão e espaço em disco...",
		KeyPreflightFailed:    "Falha na verificação do sistema",
		KeyDownloading:        "Baixando",
		KeyRetrying:           "Tentando novamente",
		KeyDownloadCompleted:  "Download concluído",
		KeyDownloadFailed:     "Falha no download",
		KeyDownloadCancelled:  "Download cancelado",
		KeyOpenFolder:         "Abrir pasta",
		KeyInvalidURL:         "URL inválida",
		KeyPlaylistDetected:   "Playlist detectada",
		KeyPlaylistQuestion:   "Esta URL pertence a uma playlist. Baixar a playlist inteira?",
		KeyPlaylistCompleted:  "Playlist concluída",
		KeyPlaylistSummary:    "%d de %d baixados, %d com falha, %d ignorados",
		KeyDiagnostics:        "Diagnóstico",
		KeyClear:              "Limpar",
		KeyExportLogs:         "Exportar Logs",
		KeyLogsExported:       "Logs salvos em",
		KeyNothingToExport:    "Não há registros para exportar",
		KeyErrorOpeningFile:   "Erro ao abrir arquivo",
		KeyPathCopied:         "Caminho copiado",
		KeyTasks:              "Downloads",
		KeyErrorStoppingTask:  "Erro ao parar tarefa",
		KeyErrorRemovingTask:  "Erro ao remover tarefa",
		KeyAlreadyDownloading: "Um download já está em andamento",
	}
}
