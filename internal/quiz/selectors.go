package quiz

// Platform markup the handlers rely on.
const (
	selDiscussionView = "div.layout-container.discussion-view"
	selPeerPost       = "div.discussion-cloud-recordList-item"
	selPeerContent    = "div.middle>.content"
	selTopicTitle     = "div.discussion-title>p"
	selTopicBody      = "div.component-htmlview"
	selDiscussInput   = "textarea.ant-input"
	selDiscussSubmit  = "div.btns-submit>button.ant-btn"

	selAudioWrapper   = "div.audio-material-wrapper"
	selAudio          = "div.audio-material-wrapper>div>audio.unipus-audio-h5"
	selVideoWrapper   = "div.video-material-wrapper"
	selVideo          = "div.video-material-wrapper video"
	selArticleWrapper = "div.text-material-wrapper"

	selTips       = "div.word-tips-wrap"
	selTipBranch  = "div.qc-abs-word-branch"
	selTipTitle   = "h2.word-title"
	selTipItem    = "li.word-item-container"
	selTipName    = "div.word-name"
	selTipExplain = "div.word-explanation"

	selChoice          = "div.question-common-abs-choice"
	classMultiple      = "multipleChoice"
	selChoiceTitle     = "div.ques-title"
	selChoiceOption    = "div.option"
	selChoiceCaption   = "div.caption"
	selChoiceContent   = "div.content"
	selChoiceOptWrap   = "div.option-wrap"
	selScoopReply      = "div.comp-scoop-reply"
	selScoopDropdown   = "div.comp-scoop-reply-dropdown-selection-overflow"
	selScoopAreas      = `div[autodiv="already"]`
	selScoopParagraphs = "div.comp-scoop-reply p"
	selScoopInput      = "div.comp-scoop-reply input"
	classScoop         = "fe-scoop"

	selCorrectionFull = "div.layout-reply-container.full"
	selCorrectionText = "div.question-common-abs-scoop>div>div"
	selCorrectionGap  = "span.fe-scoop"

	selIdeaBox    = "div.question-inputbox"
	selIdeaHeader = "div.question-inputbox-header"
	selIdeaInput  = "textarea.question-inputbox-input"

	selVideoPoint = "div.question-video-point-read"
	selAnyVideo   = "video"

	selSortable = "div.sortable-list-wrapper"
	selSortItem = "div.sortable-list-wrapper>div#sequenceReplyViewItemText"

	selSelectionRow    = "div.comp-scoop-reply-dropdown-selection-overflow tbody>tr > *:nth-child(2)"
	selSelectionWidget = "span.scoop-select-wrapper>span.input-wrapper"
	selSelectionOpen   = "span.ant-dropdown-trigger"
	selSelectionItem   = "li"

	SelSubmit       = "div.question-common-course-page>a.btn"
	SelDialogButton = "button.ant-btn.ant-btn-primary span"
	SelScore        = "span.grade"
)
