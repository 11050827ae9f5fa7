package quiz

// DefaultRegistry registers every supported layout. Order matters: the
// discussion and blank-filling rules come before the broader ones that would
// also match their pages.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	r.Register(NewDiscussion(deps)).To(selDiscussionView)
	r.Register(NewAudioBlankFilling(deps)).To(selAudioWrapper, selScoopReply).NotTo(selScoopDropdown)
	r.Register(NewAudioChoice(deps)).To(selAudioWrapper, selChoice)
	r.Register(NewVideoBlankFilling(deps)).To(selVideoWrapper, selScoopReply).NotTo(selScoopDropdown)
	r.Register(NewVideoChoice(deps)).To(selVideoWrapper, selChoice)
	r.Register(NewArticleChoice(deps)).To(selArticleWrapper, selChoice)
	idea := NewIdeaWithMedia(deps)
	r.Register(idea).To(selAudioWrapper, selIdeaBox)
	r.Register(idea).To(selVideoWrapper, selIdeaBox)
	r.Register(NewIdeaWithArticle(deps)).To(selArticleWrapper, selIdeaBox)
	r.Register(NewWordCorrection(deps)).To(selCorrectionFull, selScoopReply)
	r.Register(NewVideoWatch(deps)).To(selVideoPoint)
	r.Register(NewAudioDragSort(deps)).To(selAudioWrapper, selSortable)
	r.Register(NewVideoDragSort(deps)).To(selVideoWrapper, selSortable)
	r.Register(NewAudioSelection(deps)).To(selAudioWrapper, selScoopDropdown)
	r.Register(NewVideoSelection(deps)).To(selVideoWrapper, selScoopDropdown)
	return r
}
