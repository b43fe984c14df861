package scm

// Exported aliases for testing internal functions from the
// scm_test package.

// ParseSvnStatusForTest exposes parseSvnStatus.
var ParseSvnStatusForTest = parseSvnStatus

// ParseSvnAuthRecordForTest exposes parseSvnAuthRecord.
var ParseSvnAuthRecordForTest = parseSvnAuthRecord

// SvnCachedUsernameForTest exposes svnCachedUsername.
var SvnCachedUsernameForTest = svnCachedUsername

// SvnCheckoutRootForTest exposes svnCheckoutRoot.
var SvnCheckoutRootForTest = svnCheckoutRoot

// SvnInfoItemForTest exposes svnInfoItem.
var SvnInfoItemForTest = svnInfoItem

// RewriteAddedFileHeadersForTest exposes
// rewriteAddedFileHeaders.
var RewriteAddedFileHeadersForTest = rewriteAddedFileHeaders
